// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"database/sql"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/chugchanga/chugchanga/cliparse"
	"github.com/chugchanga/chugchanga/middleware"
)

// Backup is the XML export of the whole database. Member token hashes
// are left out.
type Backup struct {
	XMLName  xml.Name        `xml:"chugchanga"`
	Exported time.Time       `xml:"exported,attr"`
	Settings []BackupSetting `xml:"setting"`
	Years    []BackupYear    `xml:"year"`
	Voters   []BackupVoter   `xml:"voter"`
	Ballots  []BackupBallot  `xml:"ballot"`
	Votes    []BackupVote    `xml:"vote"`
	Artists  []BackupArtist  `xml:"artist"`
	Releases []BackupRelease `xml:"release"`
}

type BackupSetting struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type BackupYear struct {
	Year       int  `xml:"year,attr"`
	VotingOpen bool `xml:"voting-open,attr"`
}

type BackupVoter struct {
	ID   string `xml:"id,attr"`
	Year int    `xml:"year,attr,omitempty"`
	Name string `xml:"name"`
	URL  string `xml:"url,omitempty"`
}

type BackupBallot struct {
	ID        string    `xml:"id,attr"`
	Voter     string    `xml:"voter,attr"`
	Year      int       `xml:"year,attr"`
	Anonymous bool      `xml:"anonymous,attr"`
	Honorable int       `xml:"honorable,attr"`
	Notable   int       `xml:"notable,attr"`
	Updated   time.Time `xml:"updated,attr"`
	Preamble  string    `xml:"preamble,omitempty"`
	Postamble string    `xml:"postamble,omitempty"`
}

type BackupVote struct {
	ID       string `xml:"id,attr"`
	Ballot   string `xml:"ballot,attr"`
	Category string `xml:"category,attr"`
	Rank     int    `xml:"rank,attr"`
	Release  string `xml:"release,attr,omitempty"`
	Artist   string `xml:"artist"`
	Title    string `xml:"title"`
	Comments string `xml:"comments,omitempty"`
}

type BackupArtist struct {
	ID       string `xml:"id,attr"`
	MBID     string `xml:"mbid,attr,omitempty"`
	Name     string `xml:"name"`
	SortName string `xml:"sortname"`
	URL      string `xml:"url,omitempty"`
}

type BackupRelease struct {
	ID     string `xml:"id,attr"`
	Artist string `xml:"artist,attr"`
	MBID   string `xml:"mbid,attr,omitempty"`
	Title  string `xml:"title"`
	URL    string `xml:"url,omitempty"`
}

type BackupHandler struct {
	db  *sql.DB
	cfg cliparse.Config
}

func NewBackupHandler(db *sql.DB, cfg cliparse.Config) *BackupHandler {
	return &BackupHandler{db: db, cfg: cfg}
}

// Export handles GET /admin/backup.xml
func (h *BackupHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r, h.cfg) {
		return
	}

	var backup *Backup
	err := withTx(r.Context(), h.db, func(tx *sql.Tx) error {
		var err error
		backup, err = ExportBackup(r.Context(), tx)
		return err
	})
	if err != nil {
		slog.Error("failed to export backup", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	slog.Info("backup exported",
		"voters", len(backup.Voters),
		"ballots", len(backup.Ballots),
		"votes", len(backup.Votes),
	)

	filename := "chugchanga-" + backup.Exported.Format("20060102") + ".xml"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	middleware.XMLResponse(w, http.StatusOK, backup)
}

// eachRow runs query and calls scan for every row
func eachRow(ctx context.Context, q queryer, query string, scan func(*sql.Rows) error) error {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// ExportBackup reads every table into a Backup
func ExportBackup(ctx context.Context, q queryer) (*Backup, error) {
	b := &Backup{Exported: now().Truncate(time.Second)}

	err := eachRow(ctx, q, `SELECT name, value FROM setting ORDER BY name`, func(rows *sql.Rows) error {
		var s BackupSetting
		if err := rows.Scan(&s.Name, &s.Value); err != nil {
			return err
		}
		b.Settings = append(b.Settings, s)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export settings: %w", err)
	}

	err = eachRow(ctx, q, `SELECT year, voting_open FROM poll_year ORDER BY year`, func(rows *sql.Rows) error {
		var y BackupYear
		if err := rows.Scan(&y.Year, &y.VotingOpen); err != nil {
			return err
		}
		b.Years = append(b.Years, y)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export years: %w", err)
	}

	err = eachRow(ctx, q, `SELECT id, name, url, year FROM voter ORDER BY created_at, id`, func(rows *sql.Rows) error {
		var v BackupVoter
		var year sql.NullInt64
		if err := rows.Scan(&v.ID, &v.Name, &v.URL, &year); err != nil {
			return err
		}
		v.Year = int(year.Int64)
		b.Voters = append(b.Voters, v)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export voters: %w", err)
	}

	err = eachRow(ctx, q, `SELECT `+ballotColumns+` FROM ballot ORDER BY year, id`, func(rows *sql.Rows) error {
		ballot, err := scanBallot(rows)
		if err != nil {
			return err
		}
		b.Ballots = append(b.Ballots, BackupBallot{
			ID:        ballot.ID,
			Voter:     ballot.VoterID,
			Year:      ballot.Year,
			Anonymous: ballot.Anonymous,
			Honorable: ballot.Honorable,
			Notable:   ballot.Notable,
			Updated:   ballot.UpdatedAt,
			Preamble:  ballot.Preamble,
			Postamble: ballot.Postamble,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export ballots: %w", err)
	}

	err = eachRow(ctx, q, `
		SELECT id, ballot_id, category, vote_rank, artist, title, comments, release_id
		FROM vote
		ORDER BY ballot_id, category, vote_rank
	`, func(rows *sql.Rows) error {
		v, err := scanVote(rows)
		if err != nil {
			return err
		}
		bv := BackupVote{
			ID:       v.ID,
			Ballot:   v.BallotID,
			Category: v.Category,
			Rank:     v.Rank,
			Artist:   v.Artist,
			Title:    v.Title,
			Comments: v.Comments,
		}
		if v.ReleaseID != nil {
			bv.Release = *v.ReleaseID
		}
		b.Votes = append(b.Votes, bv)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export votes: %w", err)
	}

	err = eachRow(ctx, q, `SELECT `+artistColumns+` FROM artist ORDER BY sortname, id`, func(rows *sql.Rows) error {
		a, err := scanArtist(rows)
		if err != nil {
			return err
		}
		ba := BackupArtist{ID: a.ID, Name: a.Name, SortName: a.SortName}
		if a.MBID != nil {
			ba.MBID = *a.MBID
		}
		if a.URL != nil {
			ba.URL = *a.URL
		}
		b.Artists = append(b.Artists, ba)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export artists: %w", err)
	}

	err = eachRow(ctx, q, `SELECT `+releaseColumns+` FROM catalog_release ORDER BY artist_id, title, id`, func(rows *sql.Rows) error {
		rel, err := scanRelease(rows)
		if err != nil {
			return err
		}
		br := BackupRelease{ID: rel.ID, Artist: rel.ArtistID, Title: rel.Title}
		if rel.MBID != nil {
			br.MBID = *rel.MBID
		}
		if rel.URL != nil {
			br.URL = *rel.URL
		}
		b.Releases = append(b.Releases, br)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to export releases: %w", err)
	}

	return b, nil
}
