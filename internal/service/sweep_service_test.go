package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ajaykrishnavemula/Campus-Pass-sub001/internal/models"
)

type stubCandidateSource struct {
	candidates []models.Outpass
	err        error
}

func (s *stubCandidateSource) ListOverdueCandidates(ctx context.Context, now time.Time, limit int) ([]models.Outpass, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.candidates) > limit {
		return s.candidates[:limit], nil
	}
	return s.candidates, nil
}

type stubMarker struct {
	results map[string]bool
	errs    map[string]error
	calls   []string
}

func (s *stubMarker) MarkOverdue(ctx context.Context, id string) (bool, error) {
	s.calls = append(s.calls, id)
	if err := s.errs[id]; err != nil {
		return false, err
	}
	return s.results[id], nil
}

func TestSweepRunOnceFlagsCandidates(t *testing.T) {
	source := &stubCandidateSource{candidates: []models.Outpass{
		{ID: "op-1"}, {ID: "op-2"},
	}}
	marker := &stubMarker{results: map[string]bool{"op-1": true, "op-2": true}}
	sweep := NewSweepService(source, marker, time.Minute, 100, nil)

	require.Equal(t, 2, sweep.RunOnce(context.Background()))
	require.Equal(t, []string{"op-1", "op-2"}, marker.calls)
}

func TestSweepCheckInWinsRace(t *testing.T) {
	// op-2 checked in between the candidate listing and the flag write;
	// its no-op must not count or abort the rest of the batch.
	source := &stubCandidateSource{candidates: []models.Outpass{
		{ID: "op-1"}, {ID: "op-2"}, {ID: "op-3"},
	}}
	marker := &stubMarker{results: map[string]bool{"op-1": true, "op-2": false, "op-3": true}}
	sweep := NewSweepService(source, marker, time.Minute, 100, nil)

	require.Equal(t, 2, sweep.RunOnce(context.Background()))
	require.Len(t, marker.calls, 3)
}

func TestSweepContinuesPastMarkerErrors(t *testing.T) {
	source := &stubCandidateSource{candidates: []models.Outpass{
		{ID: "op-1"}, {ID: "op-2"},
	}}
	marker := &stubMarker{
		results: map[string]bool{"op-2": true},
		errs:    map[string]error{"op-1": errors.New("db down")},
	}
	sweep := NewSweepService(source, marker, time.Minute, 100, nil)

	require.Equal(t, 1, sweep.RunOnce(context.Background()))
	require.Len(t, marker.calls, 2)
}

func TestSweepRespectsBatchSize(t *testing.T) {
	source := &stubCandidateSource{candidates: []models.Outpass{
		{ID: "op-1"}, {ID: "op-2"}, {ID: "op-3"},
	}}
	marker := &stubMarker{results: map[string]bool{"op-1": true, "op-2": true}}
	sweep := NewSweepService(source, marker, time.Minute, 2, nil)

	require.Equal(t, 2, sweep.RunOnce(context.Background()))
	require.Len(t, marker.calls, 2)
}

func TestSweepStartStop(t *testing.T) {
	source := &stubCandidateSource{}
	marker := &stubMarker{}
	sweep := NewSweepService(source, marker, 10*time.Millisecond, 10, nil)

	sweep.Start(context.Background())
	sweep.Start(context.Background()) // second start is a no-op
	time.Sleep(30 * time.Millisecond)
	sweep.Stop()
	sweep.Stop() // second stop is a no-op
}
