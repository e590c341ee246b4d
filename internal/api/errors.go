package api

import (
	"errors"

	"github.com/husaynirfan1/lukisan-api/internal/store"
)

// isStoreNotFound reports whether the error is the store's missing-row
// error, which the API surfaces as 404.
func isStoreNotFound(err error) bool {
	return errors.Is(err, store.ErrTaskNotFound)
}
