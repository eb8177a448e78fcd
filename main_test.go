package main

import (
	"testing"
)

func TestGrantFromEnv(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		userID     string
		wantToken  string
		wantUserID int64
	}{
		{
			name:       "both set",
			token:      "abc",
			userID:     "42",
			wantToken:  "abc",
			wantUserID: 42,
		},
		{
			name:   "nothing set",
			token:  "",
			userID: "",
		},
		{
			name:      "token only",
			token:     "abc",
			wantToken: "abc",
		},
		{
			name:      "non-numeric user id ignored",
			token:     "abc",
			userID:    "not-a-number",
			wantToken: "abc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("POLAR_ACCESS_TOKEN", tt.token)
			t.Setenv("POLAR_USER_ID", tt.userID)

			grant := grantFromEnv()
			if grant.AccessToken != tt.wantToken {
				t.Errorf("AccessToken = %q, want %q", grant.AccessToken, tt.wantToken)
			}
			if grant.UserID != tt.wantUserID {
				t.Errorf("UserID = %d, want %d", grant.UserID, tt.wantUserID)
			}
		})
	}
}
