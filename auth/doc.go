// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides token generation and validation utilities.

# Admin Key

Admin routes require the X-Admin-Key header to equal the configured
ADMIN_KEY:

	if err := auth.ValidateAdminKey(r.Header.Get("X-Admin-Key"), cfg.AdminKey); err != nil {
		// 401
	}

Both values are hashed before a constant-time comparison.

# Member Tokens

Voters receive a random 24-byte (192-bit) token when they join:

	token, err := auth.GenerateMemberToken()

Only HashToken(token, cfg.TokenSalt) is stored, so a leaked database does
not leak usable tokens. Requests carry the raw token in X-Voter-Token.

# ID Generation

Random hex IDs for database records:

	id, err := auth.GenerateID(16)  // 32 hex characters
*/
package auth
