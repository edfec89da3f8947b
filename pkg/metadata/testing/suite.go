package testing

import (
	"testing"

	"github.com/marmos91/dittofiles/pkg/metadata"
)

// StoreTestSuite is a conformance suite for metadata.Store implementations.
// It tests the interface contract, not implementation details, making it reusable
// across different implementations (memory, badger, etc.).
type StoreTestSuite struct {
	// NewStore is a factory function that creates a fresh Store instance
	// for each test. This ensures test isolation.
	NewStore func() metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(test *testing.T) {
	test.Run("Healthcheck", suite.RunHealthcheckTests)
	test.Run("File", suite.RunFileTests)
	test.Run("Index", suite.RunIndexTests)
	test.Run("Transaction", suite.RunTransactionTests)
}
