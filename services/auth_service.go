package services

import (
	"context"
	"log"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/store"
)

// Credential TTL. Past this age a new login is required before harvesting.
const credentialTTL = 4 * time.Hour

// AuthService owns the upstream session. Login replaces the persisted
// credential wholesale; a rejected login leaves the previous credential (and
// the running process) untouched.
type AuthService struct {
	username string
	password string
	client   *UpstreamClient
	store    *store.Store
}

func NewAuthService(username, password string, client *UpstreamClient, st *store.Store) *AuthService {
	svc := &AuthService{username: username, password: password, client: client, store: st}
	// A credential that survived a restart is reused until the next login
	// replaces it; data queries need a token from the very first call.
	if cred, ok := st.Credential(); ok {
		client.SetToken(cred.Token)
	}
	return svc
}

// Login performs the upstream handshake and persists the refreshed
// credential. Called on startup, every two hours by the keepalive worker, and
// once before every sync cycle.
func (a *AuthService) Login(ctx context.Context) error {
	log.Printf("🔑 [AUTH] logging in as %s...", a.username)

	token, nickname, err := a.client.Login(ctx, a.username, a.password)
	if err != nil {
		log.Printf("❌ [AUTH] login failed: %v", err)
		return err
	}

	a.client.SetToken(token)

	now := time.Now()
	cred := models.Credential{
		Token:       token,
		SN:          dataQuerySN,
		SNTime:      now.UnixMilli(),
		Username:    nickname,
		UpdatedAt:   now.Format("2006-01-02 15:04:05"),
		UpdatedAtTS: now.UnixMilli(),
		Status:      models.SnapshotActive,
	}
	if cred.Username == "" {
		cred.Username = a.username
	}

	if err := a.store.SaveCredential(cred); err != nil {
		// The session itself is fine; only the persisted slot is stale.
		log.Printf("❌ [AUTH] failed to persist credential: %v", err)
		return err
	}

	log.Printf("✅ [AUTH] login ok, token prefix %.6s...", token)
	return nil
}

// IsFresh reports whether the persisted credential is younger than the TTL
// AND the data snapshots have been produced at least once. A wiped data dir
// with a surviving auth file must read as stale so startup triggers a full
// cycle.
func (a *AuthService) IsFresh(now time.Time) bool {
	cred, ok := a.store.Credential()
	if !ok || cred.UpdatedAtTS == 0 {
		return false
	}
	age := now.Sub(time.UnixMilli(cred.UpdatedAtTS))
	if age >= credentialTTL {
		return false
	}
	if a.store.Initializing() {
		log.Println("⚠️  [AUTH] snapshots still initializing, treating store as stale")
		return false
	}
	log.Printf("✨ [AUTH] credential still fresh (%.2fh old)", age.Hours())
	return true
}
