// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the application's core logic, allowing business rules to remain
// independent of specific database technologies or persistence details.
//
// GuideStore is implemented by the postgres, firestore and filestore
// packages under internal/platform, and decorated by the cache package.
// The storetest subpackage holds a conformance suite every implementation
// runs in its own tests.
package store
