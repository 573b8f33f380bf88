// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chugchanga/chugchanga/models"
	"github.com/chugchanga/chugchanga/musicbrainz"
	"github.com/chugchanga/chugchanga/testutil"
)

// fakeCatalog answers from maps and records every search
type fakeCatalog struct {
	artists  map[string]musicbrainz.Artist
	groups   map[string]musicbrainz.ReleaseGroup
	results  []musicbrainz.ReleaseGroup
	err      error
	searches []musicbrainz.SearchParams
	lookups  int
}

func (f *fakeCatalog) LookupArtist(ctx context.Context, mbid string) (*musicbrainz.Artist, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.artists[mbid]
	if !ok {
		return nil, &musicbrainz.StatusError{StatusCode: http.StatusNotFound, URL: "/artist/" + mbid}
	}
	return &a, nil
}

func (f *fakeCatalog) LookupReleaseGroup(ctx context.Context, mbid string) (*musicbrainz.ReleaseGroup, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	rg, ok := f.groups[mbid]
	if !ok {
		return nil, fmt.Errorf("release group %s: %w", mbid, musicbrainz.ErrNotFound)
	}
	return &rg, nil
}

func (f *fakeCatalog) SearchReleaseGroups(ctx context.Context, p musicbrainz.SearchParams) ([]musicbrainz.ReleaseGroup, error) {
	f.searches = append(f.searches, p)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func voteRequest(method, action, voteID string, body interface{}) *http.Request {
	req := testutil.MakeRequest(method, "/admin/votes/"+voteID+"/"+action, body, testutil.AdminHeaders())
	req.SetPathValue("id", voteID)
	return req
}

func TestFoldName(t *testing.T) {
	tests := []struct {
		a, b  string
		equal bool
	}{
		{"Wilco", "wilco", true},
		{"Sigur Rós", "Sigur Ros", true},
		{"  Dirty   Projectors ", "Dirty Projectors", true},
		{"Ｍｏｇｗａｉ", "Mogwai", true},
		{"Björk", "Bjork", true},
		{"Wilco", "Wilson", false},
	}

	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			if got := foldName(tt.a) == foldName(tt.b); got != tt.equal {
				t.Errorf("foldName(%q) == foldName(%q) is %v, expected %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
}

func TestUnmatched(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewReconcileHandler(db, cfg, &fakeCatalog{})
	testutil.CreateTestYear(t, db, 2008, false)
	testutil.CreateTestYear(t, db, 2009, true)

	artist := testutil.CreateTestArtist(t, db, "Wilco", "wilco", "")
	release := testutil.CreateTestRelease(t, db, artist, "Wilco (The Album)", "")

	v1, _ := testutil.CreateTestVoter(t, db, cfg, "Doug")
	v2, _ := testutil.CreateTestVoter(t, db, cfg, "Alice")
	b1 := testutil.CreateTestBallot(t, db, v1, 2009, false)
	b2 := testutil.CreateTestBallot(t, db, v2, 2009, false)
	old := testutil.CreateTestBallot(t, db, v1, 2008, false)

	wilco1 := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 1, "Wilco", "Wilco", "")
	wilco2 := testutil.AddTestVote(t, db, b2, models.CategoryHonorable, 3, "Wilco", "Wilco", "")
	phoenix := testutil.AddTestVote(t, db, b2, models.CategoryFavorite, 1, "Phoenix", "WAP", "")
	testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 2, "Wilco", "Wilco (The Album)", release)
	testutil.AddTestVote(t, db, b1, models.CategoryNotable, 1, "", "", "")
	testutil.AddTestVote(t, db, old, models.CategoryFavorite, 1, "Wilco", "Wilco", "")

	req := testutil.MakeRequest("GET", "/admin/years/2009/unmatched", nil, testutil.AdminHeaders())
	req.SetPathValue("year", "2009")
	w := httptest.NewRecorder()
	handler.Unmatched(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.UnmatchedResponse
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Groups) != 2 {
		t.Fatalf("Expected 2 groups, got %+v", resp.Groups)
	}
	if resp.Groups[0].Artist != "Phoenix" || len(resp.Groups[0].VoteIDs) != 1 || resp.Groups[0].VoteIDs[0] != phoenix {
		t.Errorf("Unexpected first group %+v", resp.Groups[0])
	}
	wilco := resp.Groups[1]
	if wilco.Artist != "Wilco" || wilco.Title != "Wilco" || len(wilco.VoteIDs) != 2 {
		t.Fatalf("Unexpected second group %+v", wilco)
	}
	ids := map[string]bool{wilco.VoteIDs[0]: true, wilco.VoteIDs[1]: true}
	if !ids[wilco1] || !ids[wilco2] {
		t.Errorf("Expected votes %s and %s, got %v", wilco1, wilco2, wilco.VoteIDs)
	}

	t.Run("unknown year", func(t *testing.T) {
		req := testutil.MakeRequest("GET", "/admin/years/1999/unmatched", nil, testutil.AdminHeaders())
		req.SetPathValue("year", "1999")
		w := httptest.NewRecorder()
		handler.Unmatched(w, req)
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestCandidates(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	testutil.CreateTestYear(t, db, 2009, true)
	voterID, _ := testutil.CreateTestVoter(t, db, cfg, "Doug")
	ballot := testutil.CreateTestBallot(t, db, voterID, 2009, false)

	wilco := testutil.CreateTestArtist(t, db, "Wilco", "wilco", "wilco-mbid")
	testutil.CreateTestArtist(t, db, "wilco", "wilco", "")
	known := testutil.CreateTestRelease(t, db, wilco, "Sky Blue Sky", "rg-2")
	testutil.CreateTestArtist(t, db, "Sigur Ros", "sigur ros", "")

	wilcoVote := testutil.AddTestVote(t, db, ballot, models.CategoryFavorite, 1, " WILCO", "Wilco (The Album)", "")
	sigurVote := testutil.AddTestVote(t, db, ballot, models.CategoryFavorite, 2, "Sigur Rós", "Með suð", "")
	newVote := testutil.AddTestVote(t, db, ballot, models.CategoryFavorite, 3, "Bon Iver", "Blood Bank", "")
	blankVote := testutil.AddTestVote(t, db, ballot, models.CategoryFavorite, 4, "", "", "")

	results := []musicbrainz.ReleaseGroup{
		{ID: "rg-1", Title: "Wilco (The Album)", Type: "Album", Score: 90, Artist: musicbrainz.Artist{ID: "wilco-mbid", Name: "Wilco", SortName: "Wilco"}},
		{ID: "rg-2", Title: "Sky Blue Sky", Type: "Album", Score: 40, Artist: musicbrainz.Artist{ID: "wilco-mbid", Name: "Wilco", SortName: "Wilco"}},
		{ID: "rg-1", Title: "Wilco (The Album)", Type: "Album", Score: 90},
		{ID: "rg-3", Title: "Wilco (The Album) Live", Type: "Live", Score: 95},
	}

	t.Run("known artist searches by artist id", func(t *testing.T) {
		catalog := &fakeCatalog{results: results}
		handler := NewReconcileHandler(db, cfg, catalog)

		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", wilcoVote, nil))
		testutil.AssertStatus(t, w, http.StatusOK)

		if len(catalog.searches) != 1 {
			t.Fatalf("Expected one search, got %d", len(catalog.searches))
		}
		p := catalog.searches[0]
		if p.ArtistID != "wilco-mbid" || p.Artist != "" || p.Title != "Wilco (The Album)" {
			t.Errorf("Unexpected search %+v", p)
		}

		var resp models.CandidatesResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Artist == nil || resp.Artist.ID != wilco {
			t.Fatalf("Expected artist %s, got %+v", wilco, resp.Artist)
		}
		if len(resp.LocalReleases) != 1 || resp.LocalReleases[0].ID != known {
			t.Errorf("Expected local release %s, got %+v", known, resp.LocalReleases)
		}
		if len(resp.Candidates) != 3 {
			t.Fatalf("Expected 3 distinct candidates, got %d", len(resp.Candidates))
		}
		for i, id := range []string{"rg-3", "rg-1", "rg-2"} {
			if resp.Candidates[i].MBID != id {
				t.Errorf("Position %d: expected %s, got %s", i, id, resp.Candidates[i].MBID)
			}
		}
		if resp.Candidates[2].LocalID == nil || *resp.Candidates[2].LocalID != known {
			t.Error("Expected rg-2 to point at the stored release")
		}
		if resp.Candidates[0].LocalID != nil {
			t.Error("Expected rg-3 to have no stored release")
		}
	})

	t.Run("local-only artist searches by name", func(t *testing.T) {
		catalog := &fakeCatalog{}
		handler := NewReconcileHandler(db, cfg, catalog)

		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", sigurVote, nil))
		testutil.AssertStatus(t, w, http.StatusOK)

		p := catalog.searches[0]
		if p.ArtistID != "" || p.Artist != "Sigur Rós" {
			t.Errorf("Unexpected search %+v", p)
		}
		var resp models.CandidatesResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Artist == nil || resp.Artist.Name != "Sigur Ros" {
			t.Errorf("Expected the stored Sigur Ros, got %+v", resp.Artist)
		}
	})

	t.Run("unknown artist", func(t *testing.T) {
		catalog := &fakeCatalog{}
		handler := NewReconcileHandler(db, cfg, catalog)

		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", newVote, nil))
		testutil.AssertStatus(t, w, http.StatusOK)

		var resp models.CandidatesResponse
		testutil.AssertJSON(t, w, &resp)
		if resp.Artist != nil {
			t.Errorf("Expected no stored artist, got %+v", resp.Artist)
		}
		if resp.Candidates == nil || len(resp.Candidates) != 0 {
			t.Errorf("Expected an empty candidate list, got %v", resp.Candidates)
		}
		if catalog.searches[0].Artist != "Bon Iver" {
			t.Errorf("Expected a search by name, got %+v", catalog.searches[0])
		}
	})

	t.Run("catalog unavailable", func(t *testing.T) {
		catalog := &fakeCatalog{err: &musicbrainz.StatusError{StatusCode: http.StatusServiceUnavailable, URL: "/release-group/"}}
		handler := NewReconcileHandler(db, cfg, catalog)

		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", newVote, nil))
		testutil.AssertStatus(t, w, http.StatusBadGateway)
	})

	t.Run("blank vote", func(t *testing.T) {
		handler := NewReconcileHandler(db, cfg, &fakeCatalog{})
		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", blankVote, nil))
		testutil.AssertStatus(t, w, http.StatusBadRequest)
	})

	t.Run("unknown vote", func(t *testing.T) {
		handler := NewReconcileHandler(db, cfg, &fakeCatalog{})
		w := httptest.NewRecorder()
		handler.Candidates(w, voteRequest("GET", "candidates", "nope", nil))
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestMatchVote(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	testutil.CreateTestYear(t, db, 2008, false)
	testutil.CreateTestYear(t, db, 2009, true)
	v1, _ := testutil.CreateTestVoter(t, db, cfg, "Doug")
	v2, _ := testutil.CreateTestVoter(t, db, cfg, "Alice")
	b1 := testutil.CreateTestBallot(t, db, v1, 2009, false)
	b2 := testutil.CreateTestBallot(t, db, v2, 2009, false)
	old := testutil.CreateTestBallot(t, db, v1, 2008, false)

	wilco := testutil.CreateTestArtist(t, db, "Wilco", "wilco", "")
	wilcoAlbum := testutil.CreateTestRelease(t, db, wilco, "Wilco (The Album)", "")

	catalog := &fakeCatalog{
		artists: map[string]musicbrainz.Artist{
			"phoenix-mbid": {ID: "phoenix-mbid", Name: "Phoenix", SortName: "Phoenix"},
		},
		groups: map[string]musicbrainz.ReleaseGroup{
			"rg-bon-iver": {
				ID:     "rg-bon-iver",
				Title:  "Blood Bank",
				Artist: musicbrainz.Artist{ID: "bon-iver-mbid", Name: "Bon Iver", SortName: "Bon Iver"},
			},
		},
	}
	handler := NewReconcileHandler(db, cfg, catalog)

	match := func(t *testing.T, voteID string, body models.MatchVoteRequest) (*httptest.ResponseRecorder, models.MatchVoteResponse) {
		t.Helper()
		w := httptest.NewRecorder()
		handler.Match(w, voteRequest("POST", "match", voteID, body))
		var resp models.MatchVoteResponse
		if w.Code == http.StatusOK {
			testutil.AssertJSON(t, w, &resp)
		}
		return w, resp
	}

	releaseOf := func(voteID string) string {
		var id *string
		db.QueryRow(`SELECT release_id FROM vote WHERE id = $1`, voteID).Scan(&id)
		if id == nil {
			return ""
		}
		return *id
	}

	t.Run("by release id", func(t *testing.T) {
		vote := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 1, "Wilco", "Wilco", "")
		w, resp := match(t, vote, models.MatchVoteRequest{ReleaseID: wilcoAlbum})
		testutil.AssertStatus(t, w, http.StatusOK)

		if resp.Matched != 1 || resp.Release.ID != wilcoAlbum {
			t.Errorf("Unexpected response %+v", resp)
		}
		if releaseOf(vote) != wilcoAlbum {
			t.Error("Vote was not linked")
		}
	})

	t.Run("apply to all in the same year", func(t *testing.T) {
		first := testutil.AddTestVote(t, db, b1, models.CategoryHonorable, 1, "wilco", "the album", "")
		second := testutil.AddTestVote(t, db, b2, models.CategoryFavorite, 4, "wilco", "the album", "")
		otherTitle := testutil.AddTestVote(t, db, b2, models.CategoryFavorite, 5, "wilco", "the album!", "")
		lastYear := testutil.AddTestVote(t, db, old, models.CategoryFavorite, 1, "wilco", "the album", "")

		w, resp := match(t, first, models.MatchVoteRequest{ReleaseID: wilcoAlbum, ApplyToAll: true})
		testutil.AssertStatus(t, w, http.StatusOK)

		if resp.Matched != 2 {
			t.Errorf("Expected 2 votes matched, got %d", resp.Matched)
		}
		if releaseOf(second) != wilcoAlbum {
			t.Error("Expected identical vote to be linked")
		}
		if releaseOf(otherTitle) != "" || releaseOf(lastYear) != "" {
			t.Error("Expected other votes to stay unmatched")
		}
	})

	t.Run("by release mbid", func(t *testing.T) {
		vote := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 2, "Bon Iver", "Blood Bank", "")
		lookups := catalog.lookups
		w, resp := match(t, vote, models.MatchVoteRequest{ReleaseMBID: "rg-bon-iver"})
		testutil.AssertStatus(t, w, http.StatusOK)

		if resp.Release.MBID == nil || *resp.Release.MBID != "rg-bon-iver" || resp.Release.Title != "Blood Bank" {
			t.Fatalf("Unexpected release %+v", resp.Release)
		}
		// The artist came with the release group
		if catalog.lookups != lookups+1 {
			t.Errorf("Expected a single lookup, got %d", catalog.lookups-lookups)
		}
		var name, sortName string
		db.QueryRow(`SELECT name, sortname FROM artist WHERE mbid = 'bon-iver-mbid'`).Scan(&name, &sortName)
		if name != "Bon Iver" || sortName != "bon iver" {
			t.Errorf("Unexpected artist %q / %q", name, sortName)
		}

		// The second match reuses the stored release
		again := testutil.AddTestVote(t, db, b2, models.CategoryFavorite, 6, "Bon Iver", "Blood Bank EP", "")
		w, resp2 := match(t, again, models.MatchVoteRequest{ReleaseMBID: "rg-bon-iver"})
		testutil.AssertStatus(t, w, http.StatusOK)
		if resp2.Release.ID != resp.Release.ID {
			t.Errorf("Expected release %s again, got %s", resp.Release.ID, resp2.Release.ID)
		}
		if catalog.lookups != lookups+1 {
			t.Error("Expected no lookup for a stored release")
		}
	})

	t.Run("by artist mbid and title", func(t *testing.T) {
		vote := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 3, "Phoenix", "WAP", "")
		w, resp := match(t, vote, models.MatchVoteRequest{ArtistMBID: "phoenix-mbid", Title: "Wolfgang Amadeus Phoenix"})
		testutil.AssertStatus(t, w, http.StatusOK)

		if resp.Release.Title != "Wolfgang Amadeus Phoenix" || resp.Release.MBID != nil {
			t.Errorf("Unexpected release %+v", resp.Release)
		}
		var artistMBID string
		db.QueryRow(`SELECT a.mbid FROM artist a JOIN catalog_release r ON r.artist_id = a.id WHERE r.id = $1`, resp.Release.ID).Scan(&artistMBID)
		if artistMBID != "phoenix-mbid" {
			t.Errorf("Expected release by phoenix-mbid, got %q", artistMBID)
		}
	})

	t.Run("by new artist name, title from vote", func(t *testing.T) {
		vote := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 4, "The xx", "xx", "")
		w, resp := match(t, vote, models.MatchVoteRequest{ArtistName: "The xx", SortName: "xx, The"})
		testutil.AssertStatus(t, w, http.StatusOK)

		if resp.Release.Title != "xx" {
			t.Errorf("Expected title from vote, got %q", resp.Release.Title)
		}
		var sortName string
		db.QueryRow(`SELECT sortname FROM artist WHERE id = $1`, resp.Release.ArtistID).Scan(&sortName)
		if sortName != "xx, the" {
			t.Errorf("Expected sort name 'xx, the', got %q", sortName)
		}
	})

	t.Run("by stored artist id", func(t *testing.T) {
		vote := testutil.AddTestVote(t, db, b1, models.CategoryFavorite, 5, "Wilco", "Ashes of American Flags", "")
		w, resp := match(t, vote, models.MatchVoteRequest{ArtistID: wilco})
		testutil.AssertStatus(t, w, http.StatusOK)
		if resp.Release.ArtistID != wilco {
			t.Errorf("Expected artist %s, got %s", wilco, resp.Release.ArtistID)
		}
	})

	errorCases := []struct {
		name           string
		body           models.MatchVoteRequest
		expectedStatus int
	}{
		{"unknown release id", models.MatchVoteRequest{ReleaseID: "nope"}, http.StatusNotFound},
		{"unknown release mbid", models.MatchVoteRequest{ReleaseMBID: "rg-missing"}, http.StatusNotFound},
		{"unknown artist mbid", models.MatchVoteRequest{ArtistMBID: "missing-mbid", Title: "x"}, http.StatusNotFound},
		{"unknown artist id", models.MatchVoteRequest{ArtistID: "nope", Title: "x"}, http.StatusNotFound},
		{"nothing named", models.MatchVoteRequest{Title: "x"}, http.StatusBadRequest},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			vote := testutil.AddTestVote(t, db, b2, models.CategoryNotable, 1, "Someone", "Something", "")
			defer db.Exec(`DELETE FROM vote WHERE id = $1`, vote)

			w, _ := match(t, vote, tt.body)
			testutil.AssertStatus(t, w, tt.expectedStatus)
			if releaseOf(vote) != "" {
				t.Error("Vote was linked despite the error")
			}
		})
	}

	t.Run("catalog unavailable", func(t *testing.T) {
		down := NewReconcileHandler(db, cfg, &fakeCatalog{err: errors.New("connection refused")})
		vote := testutil.AddTestVote(t, db, b2, models.CategoryNotable, 2, "Someone", "Something", "")

		w := httptest.NewRecorder()
		down.Match(w, voteRequest("POST", "match", vote, models.MatchVoteRequest{ReleaseMBID: "rg-new"}))
		testutil.AssertStatus(t, w, http.StatusBadGateway)
	})

	t.Run("unknown vote", func(t *testing.T) {
		w, _ := match(t, "nope", models.MatchVoteRequest{ReleaseID: wilcoAlbum})
		testutil.AssertStatus(t, w, http.StatusNotFound)
	})
}

func TestUnmatchVote(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	cfg := getTestConfig()
	handler := NewReconcileHandler(db, cfg, &fakeCatalog{})
	testutil.CreateTestYear(t, db, 2009, true)
	voterID, _ := testutil.CreateTestVoter(t, db, cfg, "Doug")
	ballot := testutil.CreateTestBallot(t, db, voterID, 2009, false)
	artist := testutil.CreateTestArtist(t, db, "Wilco", "wilco", "")
	release := testutil.CreateTestRelease(t, db, artist, "Wilco (The Album)", "")
	vote := testutil.AddTestVote(t, db, ballot, models.CategoryFavorite, 1, "Wilco", "Wilco", release)

	w := httptest.NewRecorder()
	handler.Unmatch(w, voteRequest("POST", "unmatch", vote, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.Vote
	testutil.AssertJSON(t, w, &resp)
	if resp.ID != vote || resp.ReleaseID != nil {
		t.Errorf("Expected vote %s without release, got %+v", vote, resp)
	}

	w = httptest.NewRecorder()
	handler.Unmatch(w, voteRequest("POST", "unmatch", "nope", nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)
}
