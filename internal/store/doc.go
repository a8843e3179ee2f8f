// Package store defines the persistence contracts the services depend on: user
// and task collections keyed like a document store, plus a change feed over the
// task collection. Drivers live in the sub-packages.
package store
