package overview

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	summary      Summary
	summaryCalls int
	movers       []Mover
	moversCalls  int
	lastLocation int64
	lastLimit    int
}

func (m *mockRepo) Summary(_ context.Context) (Summary, error) {
	m.summaryCalls++
	return m.summary, nil
}

func (m *mockRepo) TopMovers(_ context.Context, locationID int64, _ time.Time, limit int) ([]Mover, error) {
	m.moversCalls++
	m.lastLocation = locationID
	m.lastLimit = limit
	return m.movers, nil
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute))
}

func TestSummaryCaches(t *testing.T) {
	repo := &mockRepo{summary: Summary{Products: 12, Locations: 3, TotalOnHand: 480, MovementsLast: 27, OpenOrders: 4}}
	svc := newTestService(t, repo)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(480), first.TotalOnHand)

	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, repo.summaryCalls)
}

func TestInvalidateBumpsVersion(t *testing.T) {
	repo := &mockRepo{summary: Summary{Products: 1}}
	svc := newTestService(t, repo)

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.summaryCalls)

	require.NoError(t, svc.Invalidate(context.Background()))

	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.summaryCalls)
}

func TestTopMoversClampsLimit(t *testing.T) {
	repo := &mockRepo{movers: []Mover{{ProductID: 1, SKU: "WID-001", Name: "Widget", Moved: 42}}}
	svc := newTestService(t, repo)

	movers, err := svc.TopMovers(context.Background(), 2, 500)
	require.NoError(t, err)
	require.Len(t, movers, 1)
	require.Equal(t, int64(2), repo.lastLocation)
	require.Equal(t, 10, repo.lastLimit)

	// Cached per location and window.
	_, err = svc.TopMovers(context.Background(), 2, 500)
	require.NoError(t, err)
	require.Equal(t, 1, repo.moversCalls)

	_, err = svc.TopMovers(context.Background(), 0, 5)
	require.NoError(t, err)
	require.Equal(t, 2, repo.moversCalls)
	require.Equal(t, 5, repo.lastLimit)
}
