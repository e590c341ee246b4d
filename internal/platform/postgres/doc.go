// Package postgres implements the store interfaces using PostgreSQL,
// accessed through database/sql with the pgx stdlib driver.
package postgres
