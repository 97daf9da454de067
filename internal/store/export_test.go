package store

var RunBackendSuite = runBackendSuite
