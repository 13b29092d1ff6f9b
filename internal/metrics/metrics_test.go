package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestReplicaOutcomesIncrements(t *testing.T) {
	ReplicaOutcomes.WithLabelValues("success").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(ReplicaOutcomes.WithLabelValues("success")), float64(1))
}

func TestOperationErrorsIncrements(t *testing.T) {
	OperationErrors.WithLabelValues("BlobDoesNotExist").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(OperationErrors.WithLabelValues("BlobDoesNotExist")), float64(1))
}
