// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/suite"

	"github.com/chugchanga/chugchanga/cliparse"
)

type schemaSuite struct {
	suite.Suite
	conn *sql.DB
}

func TestSchemaSuite(t *testing.T) {
	suite.Run(t, new(schemaSuite))
}

func (s *schemaSuite) SetupTest() {
	conn, err := Open(cliparse.Config{DatabaseType: cliparse.DatabaseSQLite, DatabaseURL: ":memory:"})
	s.Require().NoError(err)
	s.Require().NoError(CreateSchema(conn))
	s.conn = conn
}

func (s *schemaSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *schemaSuite) TestCreateSchema_Idempotent() {
	s.Require().NoError(CreateSchema(s.conn), "second CreateSchema should be a no-op")
}

func (s *schemaSuite) TestUniqueBallotPerVoterYear() {
	s.insertVoterAndYear("v1", 2009)

	_, err := s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ($1, $2, $3, $4)`,
		"b1", "v1", 2009, time.Now())
	s.Require().NoError(err)

	_, err = s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ($1, $2, $3, $4)`,
		"b2", "v1", 2009, time.Now())
	s.Require().Error(err)
	s.Require().True(IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func (s *schemaSuite) TestUniqueVoteRankWithinCategory() {
	s.insertVoterAndYear("v1", 2009)
	_, err := s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ('b1', 'v1', 2009, $1)`, time.Now())
	s.Require().NoError(err)

	insert := `INSERT INTO vote (id, ballot_id, category, vote_rank, artist) VALUES ($1, 'b1', $2, $3, 'x')`
	_, err = s.conn.Exec(insert, "vote1", "favorite", 1)
	s.Require().NoError(err)

	// Same rank in another category is fine
	_, err = s.conn.Exec(insert, "vote2", "honorable", 1)
	s.Require().NoError(err)

	_, err = s.conn.Exec(insert, "vote3", "favorite", 1)
	s.Require().True(IsUniqueViolation(err), "expected unique violation, got %v", err)
}

func (s *schemaSuite) TestDeleteBallotCascadesToVotes() {
	s.insertVoterAndYear("v1", 2009)
	_, err := s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ('b1', 'v1', 2009, $1)`, time.Now())
	s.Require().NoError(err)
	_, err = s.conn.Exec(`INSERT INTO vote (id, ballot_id, category, vote_rank) VALUES ('vote1', 'b1', 'favorite', 1)`)
	s.Require().NoError(err)

	_, err = s.conn.Exec(`DELETE FROM ballot WHERE id = 'b1'`)
	s.Require().NoError(err)

	var count int
	s.Require().NoError(s.conn.QueryRow(`SELECT COUNT(*) FROM vote`).Scan(&count))
	s.Require().Equal(0, count)
}

func (s *schemaSuite) TestRejectsUnknownCategory() {
	s.insertVoterAndYear("v1", 2009)
	_, err := s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ('b1', 'v1', 2009, $1)`, time.Now())
	s.Require().NoError(err)

	_, err = s.conn.Exec(`INSERT INTO vote (id, ballot_id, category, vote_rank) VALUES ('vote1', 'b1', 'mention', 1)`)
	s.Require().Error(err)
	s.Require().False(IsUniqueViolation(err))
}

func (s *schemaSuite) TestBoundsBallotCounts() {
	s.insertVoterAndYear("v1", 2009)
	_, err := s.conn.Exec(`INSERT INTO ballot (id, voter_id, year, updated_at) VALUES ('b1', 'v1', 2009, $1)`, time.Now())
	s.Require().NoError(err)

	_, err = s.conn.Exec(`UPDATE ballot SET honorable = 200 WHERE id = 'b1'`)
	s.Require().NoError(err)

	_, err = s.conn.Exec(`UPDATE ballot SET notable = 2000000 WHERE id = 'b1'`)
	s.Require().Error(err)
	s.Require().False(IsUniqueViolation(err))
}

func (s *schemaSuite) insertVoterAndYear(voterID string, year int) {
	_, err := s.conn.Exec(`INSERT INTO poll_year (year, voting_open) VALUES ($1, $2)`, year, true)
	s.Require().NoError(err)
	_, err = s.conn.Exec(`INSERT INTO voter (id, token_hash, name, created_at) VALUES ($1, $2, $3, $4)`,
		voterID, "hash-"+voterID, "Voter "+voterID, time.Now())
	s.Require().NoError(err)
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres unique", &pq.Error{Code: "23505"}, true},
		{"postgres wrapped", fmt.Errorf("insert: %w", &pq.Error{Code: "23505"}), true},
		{"postgres foreign key", &pq.Error{Code: "23503"}, false},
		{"plain error", errors.New("connection refused"), false},
		{"sqlite message", errors.New("constraint failed: UNIQUE constraint failed: artist.mbid (2067)"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestOpen_UnsupportedType(t *testing.T) {
	if _, err := Open(cliparse.Config{DatabaseType: "mysql", DatabaseURL: "x"}); err == nil {
		t.Fatal("expected error for unsupported database type")
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{":memory:", ":memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:ballots.db?mode=rwc", "file:ballots.db?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"},
		{"file:x.db?_pragma=journal_mode(WAL)", "file:x.db?_pragma=journal_mode(WAL)"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
