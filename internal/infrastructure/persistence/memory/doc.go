// Package memory provides in-process repository implementations. They follow
// the same version compare-and-swap contract as the GORM repositories and are
// used for local runs (storage.driver = memory) and service tests.
package memory
