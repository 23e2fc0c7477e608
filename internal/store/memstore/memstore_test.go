package memstore

import (
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/store/storetest"
)

func TestMemstoreConformance(t *testing.T) {
	storetest.Run(t, New())
}
