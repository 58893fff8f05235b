package link

import (
	"context"
	"testing"
	"time"

	"github.com/arcmesh/link/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHealthCheckReflectsLinkStatus(t *testing.T) {
	_, initLink, _ := establishPair(t)

	checker := health.NewHealthChecker(time.Second)
	initLink.RegisterHealthCheck(checker, "initiator", time.Minute)

	result, err := checker.Check(context.Background(), "initiator")
	require.NoError(t, err)
	assert.Equal(t, health.StatusHealthy, result.Status)

	initLink.Teardown()
	checker.ClearCache()

	result, err = checker.Check(context.Background(), "initiator")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, result.Status)
}
