package tickets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemSource_FetchFiltersByRegistryDateRange(t *testing.T) {
	day := func(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }
	src := NewMemory([]Ticket{
		{Number: 1, Problem: "printer jam", RegistryDate: day(2025, 1, 1)},
		{Number: 2, Problem: "vpn down", RegistryDate: day(2025, 1, 15)},
		{Number: 3, Problem: "laptop broken", RegistryDate: day(2025, 2, 1)},
	}, nil)

	out, err := src.Fetch(context.Background(), day(2025, 1, 1), day(2025, 1, 31))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.EqualValues(t, 1, out[0].Number)
	assert.EqualValues(t, 2, out[1].Number)
}

func TestMemSource_FetchOrdersByNumberAscending(t *testing.T) {
	now := time.Now()
	src := NewMemory([]Ticket{
		{Number: 3, RegistryDate: now},
		{Number: 1, RegistryDate: now},
		{Number: 2, RegistryDate: now},
	}, nil)

	out, err := src.Fetch(context.Background(), now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.EqualValues(t, 1, out[0].Number)
	assert.EqualValues(t, 2, out[1].Number)
	assert.EqualValues(t, 3, out[2].Number)
}

func TestMemSource_EnrichByIDsPreservesRequestedOrder(t *testing.T) {
	src := NewMemory(nil, []EnrichmentRow{
		{Number: 1, FIO: "Ivanov"},
		{Number: 2, FIO: "Petrov"},
		{Number: 3, FIO: "Sidorov"},
	})

	out, err := src.EnrichByIDs(context.Background(), []int64{3, 1, 2})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, "Sidorov", out[0].FIO)
	assert.Equal(t, "Ivanov", out[1].FIO)
	assert.Equal(t, "Petrov", out[2].FIO)
}

func TestMemSource_EnrichByIDsErrorsOnGap(t *testing.T) {
	src := NewMemory(nil, []EnrichmentRow{{Number: 1, FIO: "Ivanov"}})

	_, err := src.EnrichByIDs(context.Background(), []int64{1, 99})
	assert.Error(t, err)
}
