// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines request, response, and domain types for the API.

# Domain Types

  - Year: voting period, open flag, cached summary counts
  - Voter: member display name, profile URL, year being edited
  - Ballot: one voter's ballot for one year
  - Vote: one ranked entry within a ballot category
  - Artist, Release: canonical catalog entries
  - RankedRelease: one row of a year's cached results

# Categories

	CategoryFavorite  = "favorite"   // max rank FavoriteMaxRank (20)
	CategoryHonorable = "honorable"  // max rank Ballot.Honorable
	CategoryNotable   = "notable"    // max rank Ballot.Notable

Ballot.MaxRank returns the limit for a category. "Add more" raises the
honorable and notable limits by MoreVotesStep.

# Anonymous Ballots

Ballot.DisplayName hides the voter's name behind
"Anonymous Chugchanga-L Member #<ballot id>" when the ballot is anonymous.
*/
package models
