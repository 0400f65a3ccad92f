package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

func TestCheck_AllConnected(t *testing.T) {
	c := NewChecker(fakePinger{}, fakePinger{}, fakePinger{})

	report := c.Check(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, StatusConnected, report.Postgres)
	assert.Equal(t, StatusConnected, report.Clickhouse)
	assert.Equal(t, StatusConnected, report.Redis)
}

func TestCheck_OptionalStoresNotConfigured(t *testing.T) {
	c := NewChecker(fakePinger{}, nil, nil)

	report := c.Check(context.Background())
	assert.True(t, report.Healthy)
	assert.Equal(t, StatusConnected, report.Postgres)
	assert.Equal(t, StatusNotConfigured, report.Clickhouse)
	assert.Equal(t, StatusNotConfigured, report.Redis)
}

func TestCheck_PostgresDownMeansUnhealthy(t *testing.T) {
	c := NewChecker(fakePinger{err: errors.New("refused")}, fakePinger{}, fakePinger{})

	report := c.Check(context.Background())
	assert.False(t, report.Healthy, "the relational store is mandatory")
	assert.Equal(t, StatusDisconnected, report.Postgres)
	assert.Equal(t, StatusConnected, report.Clickhouse)
}

func TestCheck_OptionalStoreDownStaysHealthy(t *testing.T) {
	c := NewChecker(fakePinger{}, fakePinger{err: errors.New("refused")}, fakePinger{err: errors.New("refused")})

	report := c.Check(context.Background())
	assert.True(t, report.Healthy, "optional stores degrade, they do not fail health")
	assert.Equal(t, StatusDisconnected, report.Clickhouse)
	assert.Equal(t, StatusDisconnected, report.Redis)
}

func TestCheck_NoPostgresConfigured(t *testing.T) {
	c := NewChecker(nil, nil, nil)

	report := c.Check(context.Background())
	assert.True(t, report.Healthy, "not_configured is not disconnected")
	assert.Equal(t, StatusNotConfigured, report.Postgres)
}
