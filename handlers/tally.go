// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/chugchanga/chugchanga/metrics"
	"github.com/chugchanga/chugchanga/models"
)

var tracer = otel.Tracer("github.com/chugchanga/chugchanga/handlers")

// Tally holds one release's vote counts for a year
type Tally struct {
	ReleaseID  string
	ArtistID   string
	ArtistName string
	SortName   string
	Title      string
	Favorite   int
	Honorable  int
	Notable    int
}

// CountVotes counts the year's votes that point at a release, by release and category
func CountVotes(ctx context.Context, q queryer, year int) ([]Tally, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT r.id, a.id, a.name, a.sortname, r.title, v.category, COUNT(*)
		FROM vote v
		JOIN ballot b ON b.id = v.ballot_id
		JOIN catalog_release r ON r.id = v.release_id
		JOIN artist a ON a.id = r.artist_id
		WHERE b.year = $1
		GROUP BY r.id, a.id, a.name, a.sortname, r.title, v.category
	`, year)
	if err != nil {
		return nil, fmt.Errorf("failed to count votes: %w", err)
	}
	defer rows.Close()

	byRelease := make(map[string]*Tally)
	var order []string
	for rows.Next() {
		var t Tally
		var category string
		var count int
		if err := rows.Scan(&t.ReleaseID, &t.ArtistID, &t.ArtistName, &t.SortName, &t.Title, &category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan vote count: %w", err)
		}

		existing, ok := byRelease[t.ReleaseID]
		if !ok {
			existing = &t
			byRelease[t.ReleaseID] = existing
			order = append(order, t.ReleaseID)
		}
		switch category {
		case models.CategoryFavorite:
			existing.Favorite += count
		case models.CategoryHonorable:
			existing.Honorable += count
		case models.CategoryNotable:
			existing.Notable += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read vote counts: %w", err)
	}

	tallies := make([]Tally, 0, len(order))
	for _, id := range order {
		tallies = append(tallies, *byRelease[id])
	}
	return tallies, nil
}

// RankReleases orders tallies by favorite then honorable votes, highest first.
// Releases with equal counts share a rank and the next group skips ahead
// by the size of the tie (1, 2, 2, 4).
func RankReleases(year int, tallies []Tally) []models.RankedRelease {
	sorted := make([]Tally, len(tallies))
	copy(sorted, tallies)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]

		// 1. More favorite votes
		if a.Favorite != b.Favorite {
			return a.Favorite > b.Favorite
		}

		// 2. More honorable mentions
		if a.Honorable != b.Honorable {
			return a.Honorable > b.Honorable
		}

		// 3. Within a tie, by artist then title
		if a.SortName != b.SortName {
			return a.SortName < b.SortName
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return a.ReleaseID < b.ReleaseID
	})

	ranked := make([]models.RankedRelease, len(sorted))
	rank := 1
	for start := 0; start < len(sorted); {
		end := start + 1
		for end < len(sorted) && sameKey(sorted[start], sorted[end]) {
			end++
		}

		tied := end-start > 1
		for i := start; i < end; i++ {
			t := sorted[i]
			release := models.Release{ID: t.ReleaseID, ArtistID: t.ArtistID}
			ranked[i] = models.RankedRelease{
				Year:       year,
				Rank:       rank,
				RankLabel:  rankLabel(rank, tied),
				ReleaseID:  t.ReleaseID,
				ArtistID:   t.ArtistID,
				ArtistName: t.ArtistName,
				SortName:   t.SortName,
				Title:      t.Title,
				Favorite:   t.Favorite,
				Honorable:  t.Honorable,
				Notable:    t.Notable,
				Link:       release.Local(),
			}
		}

		rank += end - start
		start = end
	}

	return ranked
}

func sameKey(a, b Tally) bool {
	return a.Favorite == b.Favorite && a.Honorable == b.Honorable
}

// rankLabel renders a rank as "1st", or "T-2nd" when shared
func rankLabel(rank int, tied bool) string {
	label := humanize.Ordinal(rank)
	if tied {
		return "T-" + label
	}
	return label
}

// RankYear recounts a year, replaces its stored results and refreshes
// its summary counts, all in one transaction.
func RankYear(ctx context.Context, db *sql.DB, m *metrics.Metrics, year int) (models.Year, []models.RankedRelease, error) {
	ctx, span := tracer.Start(ctx, "RankYear")
	defer span.End()
	span.SetAttributes(attribute.Int("year", year))

	start := time.Now()
	var ranked []models.RankedRelease
	var summary models.Year

	err := withTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := loadYear(ctx, tx, year); err != nil {
			return err
		}

		tallies, err := CountVotes(ctx, tx, year)
		if err != nil {
			return err
		}
		ranked = RankReleases(year, tallies)

		if _, err := tx.ExecContext(ctx, `DELETE FROM ranked_release WHERE year = $1`, year); err != nil {
			return fmt.Errorf("failed to clear ranked releases: %w", err)
		}
		for _, rr := range ranked {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO ranked_release (year, release_id, result_rank, artist_id, artist_name,
					sortname, title, favorite_count, honorable_count, notable_count)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			`, year, rr.ReleaseID, rr.Rank, rr.ArtistID, rr.ArtistName,
				rr.SortName, rr.Title, rr.Favorite, rr.Honorable, rr.Notable)
			if err != nil {
				return fmt.Errorf("failed to store ranked release: %w", err)
			}
		}

		var ballots, votes int
		err = tx.QueryRowContext(ctx, `
			SELECT COUNT(DISTINCT b.id), COUNT(v.id)
			FROM ballot b
			JOIN vote v ON v.ballot_id = b.id
			WHERE b.year = $1
		`, year).Scan(&ballots, &votes)
		if err != nil {
			return fmt.Errorf("failed to count ballots: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE poll_year
			SET ballot_count = $1, vote_count = $2, ranked_at = $3
			WHERE year = $4
		`, ballots, votes, now(), year)
		if err != nil {
			return fmt.Errorf("failed to update year summary: %w", err)
		}

		summary, err = loadYear(ctx, tx, year)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return summary, nil, err
	}

	elapsed := time.Since(start)
	m.ObserveRanking(year, len(ranked), elapsed)
	span.SetAttributes(attribute.Int("releases", len(ranked)))
	slog.Info("year ranked",
		"year", year,
		"releases", len(ranked),
		"ballots", summary.BallotCount,
		"votes", summary.VoteCount,
		"duration_ms", elapsed.Milliseconds(),
	)

	return summary, ranked, nil
}
