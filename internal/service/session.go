// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/MKhiriev/sovereign-keyring/internal/auth"
	"github.com/MKhiriev/sovereign-keyring/internal/canary"
	"github.com/MKhiriev/sovereign-keyring/internal/config"
	"github.com/MKhiriev/sovereign-keyring/internal/crypto"
	"github.com/MKhiriev/sovereign-keyring/internal/keydb"
	"github.com/MKhiriev/sovereign-keyring/internal/keystroke"
	"github.com/MKhiriev/sovereign-keyring/internal/logger"
	"github.com/MKhiriev/sovereign-keyring/internal/recovery"
	"github.com/MKhiriev/sovereign-keyring/internal/utils"
)

const saltSize = 32

// Session is the state of one unlocked persona. Its keys are scrubbed by
// [SessionService.Lock].
type Session struct {
	Persona    auth.Persona
	UnlockedAt time.Time
	Documents  *DocumentCipher

	deviceKey crypto.DeviceKey
	kek       crypto.Kek
	detector  *canary.Detector
	lastAuth  time.Time
}

func (s *Session) zero() {
	s.deviceKey.Zero()
	s.kek.Zero()
	s.Documents.zero()
}

// SessionService creates the keyring, unlocks it into a [Session] and
// manages the sealed side files of the unlocked persona: canary phrase,
// keystroke reference and guardian registry.
//
// Every side file of the duress persona carries a ".duress" suffix so the
// two personas never share state.
type SessionService struct {
	mu       sync.Mutex
	kc       *crypto.KeyChain
	storage  config.Storage
	security config.Security
	policy   auth.PasswordPolicy
	ids      IDGenerator
	now      Clock
	log      *logger.Logger

	session *Session
}

// NewSessionService builds a locked service over the files in
// cfg.Storage.DataDir.
func NewSessionService(kc *crypto.KeyChain, cfg config.StructuredConfig, ids IDGenerator, now Clock, log *logger.Logger) *SessionService {
	if now == nil {
		now = systemClock
	}
	if ids == nil {
		ids = utils.NewUUIDGenerator()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &SessionService{
		kc:       kc,
		storage:  cfg.Storage,
		security: cfg.Security,
		policy:   auth.DefaultPasswordPolicy(),
		ids:      ids,
		now:      now,
		log:      log,
	}
}

// Policy returns the password policy Setup enforces.
func (s *SessionService) Policy() auth.PasswordPolicy {
	return s.policy
}

// Initialized reports whether an auth store exists.
func (s *SessionService) Initialized() bool {
	_, err := os.Stat(s.storage.Path(config.AuthFile))
	return err == nil
}

// Setup creates the auth store for the primary and duress passphrases.
// Both must satisfy the password policy and they must differ. The device
// id and salt are reused if an earlier Setup left them behind.
func (s *SessionService) Setup(ctx context.Context, primary, duress []byte) error {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Initialized() {
		return ErrAlreadyInitialized
	}
	if v := s.policy.Validate(string(primary)); !v.Valid {
		return &PolicyError{Field: "primary", Problems: v.Errors}
	}
	if v := s.policy.Validate(string(duress)); !v.Valid {
		return &PolicyError{Field: "duress", Problems: v.Errors}
	}
	if crypto.ConstantTimeEqual(primary, duress) {
		return ErrPassphrasesEqual
	}

	deviceID, err := s.loadOrCreateDeviceID()
	if err != nil {
		log.Err(err).Str("func", "SessionService.Setup").Msg("failed to obtain device id")
		return err
	}
	salt, err := s.loadOrCreateSalt()
	if err != nil {
		log.Err(err).Str("func", "SessionService.Setup").Msg("failed to obtain salt")
		return err
	}

	store, err := auth.Create(s.kc, primary, duress, salt, deviceID)
	if err != nil {
		log.Err(err).Str("func", "SessionService.Setup").Msg("failed to create auth store")
		return err
	}
	if err = store.Save(s.storage.Path(config.AuthFile)); err != nil {
		log.Err(err).Str("func", "SessionService.Setup").Msg("failed to save auth store")
		return err
	}

	log.Info().Str("func", "SessionService.Setup").Str("device_id", deviceID).Msg("keyring initialized")
	return nil
}

// Unlock authenticates passphrase and opens the persona it belongs to. If
// keystroke verification is enabled and the persona has an enrolled
// reference, typing must match it. Any rejected attempt counts toward the
// lockout limit and is reported as [auth.ErrAuthenticationFailed]; while
// locked out Unlock returns a [*LockoutError] without checking anything.
//
// A session that is already open is locked first.
func (s *SessionService) Unlock(ctx context.Context, passphrase []byte, typing *keystroke.Profile) (*Session, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	success, err := s.authenticate(ctx, passphrase, typing)
	if err != nil {
		return nil, err
	}

	dbFile := config.PrimaryKeyDBFile
	if success.Persona == auth.Duress {
		dbFile = config.DuressKeyDBFile
	}
	db, err := s.openKeyDB(s.storage.Path(dbFile), success.DeviceKey)
	if err != nil {
		success.Zero()
		log.Err(err).Str("func", "SessionService.Unlock").Msg("failed to open key database")
		return nil, err
	}

	detector, err := s.loadDetector(success.Persona, success.Kek)
	if err != nil {
		success.Zero()
		log.Err(err).Str("func", "SessionService.Unlock").Msg("failed to open canary phrase")
		return nil, err
	}

	s.lockLocked()
	now := s.now()
	documents := NewDocumentCipher(s.kc, db, success.Kek, success.DeviceKey, RotationPolicy{
		MaxAge:     s.security.KeyRotationAge,
		MaxCommits: s.security.KeyRotationCommits,
	}, s.now)
	documents.gate = s.reauthGate
	s.session = &Session{
		Persona:    success.Persona,
		UnlockedAt: now,
		Documents:  documents,
		deviceKey: success.DeviceKey,
		kek:       success.Kek,
		detector:  detector,
		lastAuth:  now,
	}

	// The persona is deliberately not logged.
	log.Info().Str("func", "SessionService.Unlock").Msg("keyring unlocked")
	return s.session, nil
}

// Reauthenticate confirms the owner of the open session, refreshing the
// keystroke re-authentication timer. A passphrase for the other persona
// is rejected like a wrong one.
func (s *SessionService) Reauthenticate(ctx context.Context, passphrase []byte, typing *keystroke.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNotUnlocked
	}

	success, err := s.authenticate(ctx, passphrase, typing)
	if err != nil {
		return err
	}
	defer success.Zero()

	if success.Persona != s.session.Persona {
		return auth.ErrAuthenticationFailed
	}
	s.session.lastAuth = s.now()
	return nil
}

// NeedsReauth reports whether keystroke verification is enabled and the
// session has been open longer than the re-authentication interval. While
// it does, the session's document operations fail with [ErrReauthRequired]
// until [SessionService.Reauthenticate] succeeds.
func (s *SessionService) NeedsReauth() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || !s.security.KeystrokeEnabled || s.security.KeystrokeReauth <= 0 {
		return false
	}
	return s.now().Sub(s.session.lastAuth) >= s.security.KeystrokeReauth
}

func (s *SessionService) reauthGate() error {
	if s.NeedsReauth() {
		return ErrReauthRequired
	}
	return nil
}

// Lock closes the session and scrubs its keys. It is a no-op when locked.
func (s *SessionService) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockLocked()
}

func (s *SessionService) lockLocked() {
	if s.session == nil {
		return
	}
	s.session.zero()
	s.session = nil
}

// Current returns the open session or [ErrNotUnlocked].
func (s *SessionService) Current() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotUnlocked
	}
	return s.session, nil
}

// ObserveInput feeds typed text to the canary detector of the open session.
// When the canary phrase appears the session is locked immediately and
// ObserveInput returns true.
func (s *SessionService) ObserveInput(ctx context.Context, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil || s.session.detector == nil {
		return false
	}
	if !s.session.detector.FeedString(text) {
		return false
	}

	logger.FromContext(ctx).Warn().Str("func", "SessionService.ObserveInput").Msg("canary phrase typed, locking keyring")
	s.lockLocked()
	return true
}

// EnrollKeystrokes builds a keystroke reference from profiles and stores
// it sealed under the session's KEK.
func (s *SessionService) EnrollKeystrokes(ctx context.Context, profiles []keystroke.Profile) (*keystroke.Reference, error) {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotUnlocked
	}

	ref, err := keystroke.FromEnrollments(profiles)
	if err != nil {
		return nil, err
	}

	key := s.session.kek.Bytes()
	defer clear(key)

	sealed, err := ref.Seal(s.kc, key)
	if err != nil {
		log.Err(err).Str("func", "SessionService.EnrollKeystrokes").Msg("failed to seal keystroke reference")
		return nil, err
	}
	if err = sealed.Save(s.personaPath(config.KeystrokeFile, s.session.Persona)); err != nil {
		log.Err(err).Str("func", "SessionService.EnrollKeystrokes").Msg("failed to save keystroke reference")
		return nil, err
	}

	log.Info().Str("func", "SessionService.EnrollKeystrokes").Int("enrollments", ref.EnrollmentCount).Msg("keystroke reference enrolled")
	return ref, nil
}

// SetCanary stores phrase sealed under the session's KEK and arms the
// detector. An empty phrase removes the canary.
func (s *SessionService) SetCanary(ctx context.Context, phrase string) error {
	log := logger.FromContext(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNotUnlocked
	}
	path := s.personaPath(config.CanaryFile, s.session.Persona)

	if phrase == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove canary: %w", crypto.ErrIO, err)
		}
		s.session.detector = nil
		log.Info().Str("func", "SessionService.SetCanary").Msg("canary phrase cleared")
		return nil
	}

	key := s.session.kek.Bytes()
	defer clear(key)

	store, err := canary.Seal(s.kc, phrase, key)
	if err != nil {
		log.Err(err).Str("func", "SessionService.SetCanary").Msg("failed to seal canary phrase")
		return err
	}
	if err = store.Save(path); err != nil {
		log.Err(err).Str("func", "SessionService.SetCanary").Msg("failed to save canary phrase")
		return err
	}
	s.session.detector = canary.NewDetector(phrase)

	log.Info().Str("func", "SessionService.SetCanary").Msg("canary phrase set")
	return nil
}

// Guardians opens the guardian registry of the unlocked persona. A persona
// without a registry gets an empty one.
func (s *SessionService) Guardians(ctx context.Context) (*recovery.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, ErrNotUnlocked
	}

	sealed, err := crypto.LoadSealed(s.personaPath(config.GuardiansFile, s.session.Persona))
	if errors.Is(err, os.ErrNotExist) {
		return &recovery.Registry{}, nil
	}
	if err != nil {
		return nil, err
	}

	key := s.session.kek.Bytes()
	defer clear(key)

	reg, err := recovery.OpenRegistry(sealed, key)
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "SessionService.Guardians").Msg("failed to open guardian registry")
		return nil, err
	}
	return reg, nil
}

// SaveGuardians seals reg under the session's KEK and writes it.
func (s *SessionService) SaveGuardians(ctx context.Context, reg *recovery.Registry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ErrNotUnlocked
	}

	key := s.session.kek.Bytes()
	defer clear(key)

	sealed, err := reg.Seal(s.kc, key)
	if err != nil {
		return err
	}
	if err = sealed.Save(s.personaPath(config.GuardiansFile, s.session.Persona)); err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "SessionService.SaveGuardians").Msg("failed to save guardian registry")
		return err
	}
	return nil
}

// AddGuardian enrolls a new active guardian in the registry of the open
// session and returns it with its generated id.
func (s *SessionService) AddGuardian(ctx context.Context, name, contact, peerID string) (recovery.GuardianInfo, error) {
	reg, err := s.Guardians(ctx)
	if err != nil {
		return recovery.GuardianInfo{}, err
	}

	g := recovery.GuardianInfo{
		ID:         s.ids.Generate(),
		Name:       strings.TrimSpace(name),
		Contact:    strings.TrimSpace(contact),
		Status:     recovery.GuardianActive,
		EnrolledAt: s.now().UTC(),
		PeerID:     peerID,
	}
	if err = reg.AddGuardian(g); err != nil {
		return recovery.GuardianInfo{}, err
	}
	if err = s.SaveGuardians(ctx, reg); err != nil {
		return recovery.GuardianInfo{}, err
	}
	return g, nil
}

// authenticate runs the lockout check, the passphrase check and the
// keystroke gate. Callers hold s.mu.
func (s *SessionService) authenticate(ctx context.Context, passphrase []byte, typing *keystroke.Profile) (*auth.AuthSuccess, error) {
	log := logger.FromContext(ctx)
	lockoutPath := s.storage.Path(config.LockoutFile)
	now := s.now()

	state, err := loadLockout(lockoutPath)
	if err != nil {
		return nil, err
	}
	if state.lockedAt(now) {
		return nil, &LockoutError{Until: state.LockedUntil}
	}

	store, err := auth.Load(s.storage.Path(config.AuthFile))
	if auth.IsNotExist(err) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}

	success, err := store.Authenticate(passphrase)
	if err == nil && !s.keystrokeAccepted(success, typing) {
		success.Zero()
		success, err = nil, auth.ErrAuthenticationFailed
	}
	if err != nil {
		state = state.fail(now, s.security.MaxLoginAttempts, s.security.LockoutDuration)
		if saveErr := state.save(lockoutPath); saveErr != nil {
			log.Err(saveErr).Str("func", "SessionService.authenticate").Msg("failed to record failed attempt")
		}
		log.Warn().Str("func", "SessionService.authenticate").Int("failed_attempts", state.FailedAttempts).Msg("unlock attempt rejected")
		return nil, err
	}

	if state.FailedAttempts > 0 || !state.LockedUntil.IsZero() {
		if err = (lockoutState{}).save(lockoutPath); err != nil {
			success.Zero()
			return nil, err
		}
	}
	return success, nil
}

// keystrokeAccepted applies the keystroke gate. A persona without an
// enrolled reference always passes.
func (s *SessionService) keystrokeAccepted(success *auth.AuthSuccess, typing *keystroke.Profile) bool {
	if !s.security.KeystrokeEnabled {
		return true
	}

	sealed, err := crypto.LoadSealed(s.personaPath(config.KeystrokeFile, success.Persona))
	if errors.Is(err, os.ErrNotExist) {
		return true
	}
	if err != nil || typing == nil {
		return false
	}

	key := success.Kek.Bytes()
	defer clear(key)

	ref, err := keystroke.Open(sealed, key)
	if err != nil {
		return false
	}
	return ref.Matches(*typing)
}

func (s *SessionService) openKeyDB(path string, deviceKey crypto.DeviceKey) (*keydb.KeyDatabase, error) {
	db, err := keydb.Load(path, deviceKey, s.kc)
	if errors.Is(err, os.ErrNotExist) {
		db = keydb.New(path, s.kc)
		return db, db.Save(deviceKey)
	}
	return db, err
}

func (s *SessionService) loadDetector(p auth.Persona, kek crypto.Kek) (*canary.Detector, error) {
	store, err := canary.Load(s.personaPath(config.CanaryFile, p))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	key := kek.Bytes()
	defer clear(key)
	return store.Detector(key)
}

func (s *SessionService) loadOrCreateDeviceID() (string, error) {
	path := s.storage.Path(config.DeviceIDFile)
	data, err := os.ReadFile(path)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: read device id: %w", crypto.ErrIO, err)
	}

	id := s.ids.Generate()
	if err = utils.WriteFileAtomic(path, []byte(id+"\n"), 0o600); err != nil {
		return "", fmt.Errorf("%w: write device id: %w", crypto.ErrIO, err)
	}
	return id, nil
}

func (s *SessionService) loadOrCreateSalt() ([]byte, error) {
	path := s.storage.Path(config.SaltFile)
	salt, err := os.ReadFile(path)
	if err == nil && len(salt) == saltSize {
		return salt, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: read salt: %w", crypto.ErrIO, err)
	}

	salt, err = s.kc.RandomBytes(saltSize)
	if err != nil {
		return nil, err
	}
	if err = utils.WriteFileAtomic(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("%w: write salt: %w", crypto.ErrIO, err)
	}
	return salt, nil
}

// personaPath returns the side file name for persona p, inserting
// ".duress" before the extension for the duress persona.
func (s *SessionService) personaPath(name string, p auth.Persona) string {
	if p == auth.Duress {
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + ".duress" + ext
	}
	return s.storage.Path(name)
}
