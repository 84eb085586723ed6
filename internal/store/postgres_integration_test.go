// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/muster/internal/core"
	"github.com/holomush/muster/internal/enlistment"
	"github.com/holomush/muster/internal/store"
	"github.com/holomush/muster/pkg/errutil"
)

var (
	container *postgres.PostgresContainer
	connStr   string
	pool      *pgxpool.Pool
)

var _ = BeforeSuite(func() {
	ctx := context.Background()

	var err error
	container, err = postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("muster_test"),
		postgres.WithUsername("muster"),
		postgres.WithPassword("muster"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	connStr, err = container.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	pool, err = store.Connect(ctx, connStr, store.DefaultConnectOptions())
	Expect(err).NotTo(HaveOccurred())
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
})

func migrateUp() {
	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = migrator.Close() }()
	Expect(migrator.Up()).To(Succeed())
}

func migrateDown() {
	migrator, err := store.NewMigrator(connStr)
	Expect(err).NotTo(HaveOccurred())
	defer func() { _ = migrator.Close() }()
	Expect(migrator.Down()).To(Succeed())
}

func appendEvents(events *store.PostgresEventStore, stream string, n int) []ulid.ULID {
	ids := make([]ulid.ULID, n)
	for i := range n {
		ids[i] = core.NewULID()
		err := events.Append(context.Background(), core.Event{
			ID:        ids[i],
			Stream:    stream,
			Type:      core.EventTypeWagePaid,
			Timestamp: time.Now(),
			Actor:     core.Actor{Kind: core.ActorSystem, ID: "system"},
			Payload:   []byte(`{"amount":10}`),
		})
		Expect(err).NotTo(HaveOccurred())
	}
	return ids
}

var _ = Describe("PostgresEventStore", func() {
	var events *store.PostgresEventStore

	BeforeEach(func() {
		migrateUp()
		events = store.NewPostgresEventStore(pool)
	})

	AfterEach(migrateDown)

	It("round-trips an event", func() {
		ctx := context.Background()
		event := core.Event{
			ID:        core.NewULID(),
			Stream:    "enlistment:p1",
			Type:      core.EventTypeEnlisted,
			Timestamp: time.Now().UTC().Truncate(time.Microsecond),
			Actor:     core.Actor{Kind: core.ActorPlayer, ID: "p1"},
			Payload:   []byte(`{"commander_id": "c1"}`),
		}
		Expect(events.Append(ctx, event)).To(Succeed())

		got, err := events.Replay(ctx, "enlistment:p1", ulid.ULID{}, 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(HaveLen(1))
		Expect(got[0].ID).To(Equal(event.ID))
		Expect(got[0].Type).To(Equal(core.EventTypeEnlisted))
		Expect(got[0].Actor).To(Equal(event.Actor))
		Expect(got[0].Timestamp.Equal(event.Timestamp)).To(BeTrue())
		Expect(string(got[0].Payload)).To(MatchJSON(`{"commander_id":"c1"}`))
	})

	It("replays after an id with a limit", func() {
		ctx := context.Background()
		ids := appendEvents(events, "enlistment:p2", 5)

		after, err := events.Replay(ctx, "enlistment:p2", ids[1], 10)
		Expect(err).NotTo(HaveOccurred())
		Expect(after).To(HaveLen(3))
		Expect(after[0].ID).To(Equal(ids[2]))

		limited, err := events.Replay(ctx, "enlistment:p2", ulid.ULID{}, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(limited).To(HaveLen(2))
	})

	It("reports the last event id", func() {
		ctx := context.Background()
		_, err := events.LastEventID(ctx, "enlistment:p3")
		Expect(err).To(MatchError(core.ErrStreamEmpty))

		ids := appendEvents(events, "enlistment:p3", 3)
		last, err := events.LastEventID(ctx, "enlistment:p3")
		Expect(err).NotTo(HaveOccurred())
		Expect(last).To(Equal(ids[2]))
	})
})

var _ = Describe("PostgresRecordStore", func() {
	var records *store.PostgresRecordStore

	BeforeEach(func() {
		migrateUp()
		records = store.NewPostgresRecordStore(pool)
	})

	AfterEach(migrateDown)

	It("saves and reloads an enlisted slot", func() {
		ctx := context.Background()
		player := core.NewULID()
		commander := core.NewULID()
		day := uint64(4)
		slot := store.Slot{
			Player: player,
			Snapshot: enlistment.Snapshot{
				Enlisted:              true,
				Commander:             &commander,
				PlayerPartyWasVisible: true,
				Tier:                  2,
				CurrentXP:             75,
				NextTierXP:            1500,
			},
			ClockTick:   96,
			LastWageDay: &day,
			World:       []byte(`{"wallet": 12, "party_visible": false}`),
		}
		Expect(records.Save(ctx, slot)).To(Succeed())

		got, found, err := records.Load(ctx, player)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(got.Snapshot).To(Equal(slot.Snapshot))
		Expect(got.ClockTick).To(Equal(uint64(96)))
		Expect(*got.LastWageDay).To(Equal(day))
		Expect(string(got.World)).To(MatchJSON(`{"wallet": 12, "party_visible": false}`))
	})

	It("overwrites a slot on save", func() {
		ctx := context.Background()
		player := core.NewULID()
		commander := core.NewULID()
		Expect(records.Save(ctx, store.Slot{
			Player:   player,
			Snapshot: enlistment.Snapshot{Enlisted: true, Commander: &commander, Tier: 1},
		})).To(Succeed())
		Expect(records.Save(ctx, store.Slot{
			Player:   player,
			Snapshot: enlistment.Snapshot{PlayerPartyWasVisible: true},
		})).To(Succeed())

		got, found, err := records.Load(ctx, player)
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeTrue())
		Expect(got.Snapshot.Enlisted).To(BeFalse())
		Expect(got.Snapshot.Commander).To(BeNil())
		Expect(got.LastWageDay).To(BeNil())
	})

	It("rejects an enlisted slot without a commander", func() {
		err := records.Save(context.Background(), store.Slot{
			Player:   core.NewULID(),
			Snapshot: enlistment.Snapshot{Enlisted: true},
		})
		Expect(err).To(HaveOccurred())
		Expect(errutil.Code(err)).To(Equal("SAVE_FAILED"))
	})

	It("reports a missing slot", func() {
		_, found, err := records.Load(context.Background(), core.NewULID())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeFalse())
	})
})

var _ = Describe("unmigrated schema", func() {
	It("flags queries against missing tables", func() {
		_, _, err := store.NewPostgresRecordStore(pool).Load(context.Background(), core.NewULID())
		Expect(err).To(HaveOccurred())
		Expect(errutil.Code(err)).To(Equal(store.CodeSchemaNotMigrated))
	})
})
