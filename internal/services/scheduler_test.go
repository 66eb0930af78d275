package services

import (
	"context"
	"testing"
	"time"

	"reverse-auction/internal/domain"

	"github.com/stretchr/testify/require"
)

func schedulerFixture(store *memStore, isLeader bool) *CronJobScheduler {
	manager, _, _, _ := newManager(store)
	fullScheduler := NewCronJobScheduler(store, manager, &fakeLeader{leader: isLeader},
		"test-instance", time.Second, testLog)
	manager.SetScheduler(fullScheduler)
	return fullScheduler
}

func upcomingListing(store *memStore) *domain.Listing {
	now := time.Now()
	lot := &domain.Lot{ID: "lot-1", LotPrice: dec("1000"), Duration: "01:00", Status: domain.LotPending}
	listing := &domain.Listing{
		ID: "listing-1", Name: "Scheduled", Slug: "scheduled",
		Status: domain.ListingUpcoming, StartDate: now.Add(-time.Minute),
		StartTime: "10:00", LotIDs: []string{"lot-1"}, ActiveLotID: "lot-1",
		ActiveLotEndTime: now.Add(time.Hour),
	}
	store.addListing(listing, lot)
	return listing
}

func TestSchedulerOnlyLeaderDispatches(t *testing.T) {
	store := newMemStore()
	listing := upcomingListing(store)
	scheduler := schedulerFixture(store, false)
	ctx := context.Background()

	require.NoError(t, scheduler.Schedule(ctx, domain.StartJobKey(listing.ID),
		time.Now().Add(-time.Second),
		domain.JobPayload{ListingID: listing.ID, Action: domain.JobStartAuction}))

	scheduler.processDueJobs(ctx)

	require.Equal(t, domain.ListingUpcoming, store.listing(listing.ID).Status)
	require.Equal(t, domain.JobPending, store.job(domain.StartJobKey(listing.ID)).Status)
}

func TestSchedulerFiresDueStartJob(t *testing.T) {
	store := newMemStore()
	listing := upcomingListing(store)
	scheduler := schedulerFixture(store, true)
	ctx := context.Background()

	key := domain.StartJobKey(listing.ID)
	require.NoError(t, scheduler.Schedule(ctx, key, time.Now().Add(-time.Second),
		domain.JobPayload{ListingID: listing.ID, Action: domain.JobStartAuction}))

	scheduler.processDueJobs(ctx)

	require.Equal(t, domain.ListingInProgress, store.listing(listing.ID).Status)
	require.Equal(t, domain.JobExecuted, store.job(key).Status)
}

func TestSchedulerLeavesFutureJobs(t *testing.T) {
	store := newMemStore()
	listing := upcomingListing(store)
	scheduler := schedulerFixture(store, true)
	ctx := context.Background()

	key := domain.StartJobKey(listing.ID)
	require.NoError(t, scheduler.Schedule(ctx, key, time.Now().Add(time.Hour),
		domain.JobPayload{ListingID: listing.ID, Action: domain.JobStartAuction}))

	scheduler.processDueJobs(ctx)

	require.Equal(t, domain.ListingUpcoming, store.listing(listing.ID).Status)
	require.Equal(t, domain.JobPending, store.job(key).Status)
}

func TestSchedulerFiresTransitionJob(t *testing.T) {
	store := newMemStore()
	listing := twoLotListing(store, time.Minute)
	scheduler := schedulerFixture(store, true)
	ctx := context.Background()

	key := domain.TransitionJobKey(listing.ID, "lot-1")
	require.NoError(t, scheduler.Schedule(ctx, key, time.Now().Add(-time.Second),
		domain.JobPayload{ListingID: listing.ID, LotID: "lot-1", Action: domain.JobTransitionToNextLot}))

	scheduler.processDueJobs(ctx)

	require.Equal(t, "lot-2", store.listing(listing.ID).ActiveLotID)
	require.Equal(t, domain.JobExecuted, store.job(key).Status)
	// The transition scheduled the follower lot's job.
	next := store.job(domain.TransitionJobKey(listing.ID, "lot-2"))
	require.NotNil(t, next)
	require.Equal(t, domain.JobPending, next.Status)
}

func TestRescheduleReplacesPendingJob(t *testing.T) {
	store := newMemStore()
	scheduler := schedulerFixture(store, true)
	ctx := context.Background()

	payload := domain.JobPayload{ListingID: "l1", LotID: "lot-1", Action: domain.JobTransitionToNextLot}
	key := domain.TransitionJobKey("l1", "lot-1")
	first := time.Now().Add(time.Minute)
	second := first.Add(5 * time.Minute)

	require.NoError(t, scheduler.Schedule(ctx, key, first, payload))
	require.NoError(t, scheduler.Reschedule(ctx, key, second, payload))

	pending := store.pendingJobs()
	require.Len(t, pending, 1)
	require.Equal(t, second, pending[0].RunAt)
}

func TestMarkExecutedSkipsRescheduledJob(t *testing.T) {
	store := newMemStore()
	ctx := context.Background()

	firedAt := time.Now().Add(-time.Second)
	job := &domain.ScheduledJob{
		Key: "transition:l1:lot-1", ListingID: "l1", LotID: "lot-1",
		Action: domain.JobTransitionToNextLot, RunAt: firedAt, Status: domain.JobPending,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	// A bid extension replaced the job while the fired copy was in flight.
	replaced := *job
	replaced.RunAt = firedAt.Add(5 * time.Minute)
	require.NoError(t, store.UpsertJob(ctx, &replaced))

	require.NoError(t, store.MarkExecuted(ctx, job.Key, firedAt))
	require.Equal(t, domain.JobPending, store.job(job.Key).Status)

	// Completion with the matching due time does take effect.
	require.NoError(t, store.MarkExecuted(ctx, job.Key, replaced.RunAt))
	require.Equal(t, domain.JobExecuted, store.job(job.Key).Status)
}

func TestCancelRemovesPendingJob(t *testing.T) {
	store := newMemStore()
	scheduler := schedulerFixture(store, true)
	ctx := context.Background()

	key := domain.StartJobKey("l1")
	require.NoError(t, scheduler.Schedule(ctx, key, time.Now().Add(time.Minute),
		domain.JobPayload{ListingID: "l1", Action: domain.JobStartAuction}))
	require.NoError(t, scheduler.Cancel(ctx, key))

	require.Empty(t, store.pendingJobs())
}
