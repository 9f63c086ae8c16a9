package oauth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Wieedze/Sofia-Attestor-Template/api/schemas"
)

// platformSpec is one row of the closed platform dispatch table: where to ask
// "who am I", how to authenticate the question, and how to read the answer.
// Identifiers are opaque strings; no platform is assumed to use numeric ids.
type platformSpec struct {
	endpoint         string
	requiresClientID bool
	setHeaders       func(h http.Header, token, clientID string)
	extract          func(body []byte) (id, name string, err error)
}

func bearerOnly(h http.Header, token, _ string) {
	h.Set("Authorization", "Bearer "+token)
}

var errNoID = fmt.Errorf("could not extract id")

var platforms = map[schemas.Platform]platformSpec{
	schemas.PlatformDiscord: {
		endpoint:   "https://discord.com/api/users/@me",
		setHeaders: bearerOnly,
		extract: func(body []byte) (string, string, error) {
			var payload struct {
				ID       string `json:"id"`
				Username string `json:"username"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", "", err
			}
			if payload.ID == "" {
				return "", "", errNoID
			}
			return payload.ID, payload.Username, nil
		},
	},
	schemas.PlatformYouTube: {
		endpoint:   "https://www.googleapis.com/youtube/v3/channels?part=snippet&mine=true",
		setHeaders: bearerOnly,
		extract: func(body []byte) (string, string, error) {
			var payload struct {
				Items []struct {
					ID      string `json:"id"`
					Snippet struct {
						Title string `json:"title"`
					} `json:"snippet"`
				} `json:"items"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", "", err
			}
			if len(payload.Items) == 0 || payload.Items[0].ID == "" {
				return "", "", errNoID
			}
			return payload.Items[0].ID, payload.Items[0].Snippet.Title, nil
		},
	},
	schemas.PlatformSpotify: {
		endpoint:   "https://api.spotify.com/v1/me",
		setHeaders: bearerOnly,
		extract: func(body []byte) (string, string, error) {
			var payload struct {
				ID          string `json:"id"`
				DisplayName string `json:"display_name"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", "", err
			}
			if payload.ID == "" {
				return "", "", errNoID
			}
			return payload.ID, payload.DisplayName, nil
		},
	},
	schemas.PlatformTwitch: {
		endpoint:         "https://api.twitch.tv/helix/users",
		requiresClientID: true,
		setHeaders: func(h http.Header, token, clientID string) {
			h.Set("Authorization", "Bearer "+token)
			h.Set("Client-Id", clientID)
		},
		extract: func(body []byte) (string, string, error) {
			var payload struct {
				Data []struct {
					ID    string `json:"id"`
					Login string `json:"login"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", "", err
			}
			if len(payload.Data) == 0 || payload.Data[0].ID == "" {
				return "", "", errNoID
			}
			return payload.Data[0].ID, payload.Data[0].Login, nil
		},
	},
	schemas.PlatformTwitter: {
		endpoint:   "https://api.twitter.com/2/users/me",
		setHeaders: bearerOnly,
		extract: func(body []byte) (string, string, error) {
			var payload struct {
				Data struct {
					ID       string `json:"id"`
					Username string `json:"username"`
				} `json:"data"`
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return "", "", err
			}
			if payload.Data.ID == "" {
				return "", "", errNoID
			}
			return payload.Data.ID, payload.Data.Username, nil
		},
	},
}
