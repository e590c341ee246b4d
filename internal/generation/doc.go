// Package generation defines the contract with the remote generation
// service: the client interface for submitting jobs and fetching raw
// status, and the normalizer that maps heterogeneous provider status
// vocabularies into the closed internal status set.
package generation
