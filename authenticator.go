package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	defaultTxTimeout   = 10 * time.Second
	defaultMailTimeout = 30 * time.Second
)

// Auther orchestrates sign-in, sign-up, federated sign-in and token
// rotation on top of the resolver, the token service and the vault
type Auther struct {
	repo         RepositoryManager
	config       Config
	resolver     *IdentityResolver
	tokenService TokenService
	vault        *RefreshTokenVault
	otp          OTPVerifier
	federated    FederatedIdentityVerifier
	mailer       Mailer
	mailFrom     string
	activitySink ActivitySink
	logger       Logger
	txTimeout    time.Duration
}

var _ Authenticator = (*Auther)(nil)

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(repo RepositoryManager, config Config) *Auther {
	logger := defLogger{}
	return &Auther{
		repo:         repo,
		config:       config,
		resolver:     NewIdentityResolver(repo),
		tokenService: NewTokenService(config, logger),
		vault:        NewRefreshTokenVault(repo, config),
		otp:          NewStaticOTPVerifier(DefaultOTPCode),
		mailer:       logMailer{logger: logger},
		activitySink: noopActivitySink{},
		logger:       logger,
		txTimeout:    defaultTxTimeout,
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	if logger == nil {
		return s
	}
	s.logger = logger
	s.resolver.WithLogger(logger)
	s.vault.WithLogger(logger)
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok {
		ts.logger = logger
	}
	if _, ok := s.mailer.(logMailer); ok {
		s.mailer = logMailer{logger: logger}
	}
	return s
}

// WithTokenService replaces the token service used to mint pairs
func (s *Auther) WithTokenService(service TokenService) *Auther {
	if service != nil {
		s.tokenService = service
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

func (s *Auther) WithOTPVerifier(verifier OTPVerifier) *Auther {
	if verifier != nil {
		s.otp = verifier
	}
	return s
}

// WithFederatedIdentityVerifier sets the provider used by FederatedSignIn
func (s *Auther) WithFederatedIdentityVerifier(verifier FederatedIdentityVerifier) *Auther {
	s.federated = verifier
	return s
}

// WithMailer sets the mailer. When from is not empty administrators get a
// notification after each federated sign-in.
func (s *Auther) WithMailer(mailer Mailer, from string) *Auther {
	if mailer != nil {
		s.mailer = mailer
	}
	s.mailFrom = from
	return s
}

func (s *Auther) WithTransactionTimeout(timeout time.Duration) *Auther {
	if timeout > 0 {
		s.txTimeout = timeout
	}
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

func (s *Auther) Resolver() *IdentityResolver {
	return s.resolver
}

func (s *Auther) Vault() *RefreshTokenVault {
	return s.vault
}

// SignIn issues a pair for the student or citizen with the given id
func (s *Auther) SignIn(ctx context.Context, id string) (*TokenPair, error) {
	ref, _, err := s.resolver.Resolve(ctx, id)
	if err != nil {
		s.logger.Error("SignIn resolve identity error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventSignInFailure, AccountRef{}, map[string]any{
			"identifier": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	pair, err := s.startSession(ctx, ref)
	if err != nil {
		s.logger.Error("SignIn start session error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventSignInFailure, ref, map[string]any{
			"identifier": id,
			"error":      err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventSignInSuccess, ref, nil)

	return pair, nil
}

func (s *Auther) SignUpStudent(ctx context.Context, msg SignUpStudentMessage) (*TokenPair, error) {
	if err := msg.Validate(); err != nil {
		return nil, withCause(ErrInvalidPayload, err, map[string]any{"validation": err.Error()})
	}

	phone, err := NormalizePhoneNumber(msg.PhoneNumber, s.phoneRegion())
	if err != nil {
		return nil, err
	}

	student := msg.record(phone)
	return s.signUp(ctx, student, func(ctx context.Context, tx bun.IDB) error {
		_, err := s.repo.Students().CreateTx(ctx, tx, student)
		return err
	})
}

func (s *Auther) SignUpCitizen(ctx context.Context, msg SignUpCitizenMessage) (*TokenPair, error) {
	if err := msg.Validate(); err != nil {
		return nil, withCause(ErrInvalidPayload, err, map[string]any{"validation": err.Error()})
	}

	phone, err := NormalizePhoneNumber(msg.PhoneNumber, s.phoneRegion())
	if err != nil {
		return nil, err
	}

	citizen := msg.record(phone)
	return s.signUp(ctx, citizen, func(ctx context.Context, tx bun.IDB) error {
		_, err := s.repo.Citizens().CreateTx(ctx, tx, citizen)
		return err
	})
}

// signUp creates the account, claims its phone number and stores the
// refresh token hash in one transaction. Tokens are minted before the
// transaction opens, a failure at any step leaves nothing behind.
func (s *Auther) signUp(ctx context.Context, account Account, create func(ctx context.Context, tx bun.IDB) error) (*TokenPair, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during sign up")
	default:
	}

	phone := account.GetPhoneNumber()

	owner, err := s.resolver.PhoneNumberOwner(ctx, phone)
	if err != nil {
		return nil, s.signUpFailed(ctx, account, err)
	}

	if owner != nil {
		return nil, s.signUpFailed(ctx, account, withCause(ErrPhoneNumberExists, nil, map[string]any{
			"phone_number": phone,
		}))
	}

	if account.GetID() == uuid.Nil {
		account.SetID(uuid.New())
	}
	ref := account.Ref()

	pair, err := s.tokenService.IssuePair(payloadFor(ref))
	if err != nil {
		return nil, s.signUpFailed(ctx, account, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	err = s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := s.repo.PhoneNumbers().ClaimTx(ctx, tx, phone, ref); err != nil {
			return err
		}

		if err := create(ctx, tx); err != nil {
			if isUniqueViolation(err) {
				return withCause(ErrPhoneNumberExists, err, map[string]any{"phone_number": phone})
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "could not create account")
		}

		return s.vault.StoreTx(ctx, tx, ref, pair.RefreshToken)
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, s.signUpFailed(ctx, account, richErr)
		}
		return nil, s.signUpFailed(ctx, account, goerrors.Wrap(err, goerrors.CategoryInternal, "sign up transaction failed"))
	}

	s.emitAuthEvent(ctx, ActivityEventSignUpSuccess, ref, nil)

	return pair, nil
}

func (s *Auther) signUpFailed(ctx context.Context, account Account, err error) error {
	s.logger.Error("SignUp error", "kind", account.Ref().Kind, "error", err)
	s.emitAuthEvent(ctx, ActivityEventSignUpFailure, AccountRef{Kind: account.Ref().Kind}, map[string]any{
		"error": err.Error(),
	})
	return err
}

// FederatedSignIn verifies a provider credential and signs in the
// administrator registered under its email
func (s *Auther) FederatedSignIn(ctx context.Context, credential string) (*TokenPair, error) {
	if s.federated == nil {
		return nil, withCause(ErrFederatedIdentity, nil, map[string]any{"reason": "no identity provider configured"})
	}

	identity, err := s.federated.Verify(ctx, credential)
	if err != nil {
		s.logger.Warn("FederatedSignIn verify credential error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventFederatedFailure, AccountRef{Kind: KindAdmin}, map[string]any{
			"error": err.Error(),
		})
		return nil, withCause(ErrFederatedIdentity, err, nil)
	}

	if identity == nil || identity.Email == "" || !identity.EmailVerified {
		s.emitAuthEvent(ctx, ActivityEventFederatedFailure, AccountRef{Kind: KindAdmin}, map[string]any{
			"error": "email missing or not verified",
		})
		return nil, withCause(ErrFederatedIdentity, nil, map[string]any{"reason": "email missing or not verified"})
	}

	return s.FederatedSignInAdmin(ctx, identity.Email)
}

// FederatedSignInAdmin issues a pair for the administrator registered
// under email. Unknown emails are rejected without creating an account.
func (s *Auther) FederatedSignInAdmin(ctx context.Context, email string) (*TokenPair, error) {
	admin, err := s.resolver.ResolveAdminByEmail(ctx, email)
	if err != nil {
		s.logger.Warn("FederatedSignInAdmin resolve admin error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventFederatedFailure, AccountRef{Kind: KindAdmin}, map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	pair, err := s.startSession(ctx, admin.Ref())
	if err != nil {
		s.logger.Error("FederatedSignInAdmin start session error", "error", err)
		s.emitAuthEvent(ctx, ActivityEventFederatedFailure, admin.Ref(), map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventFederatedSignIn, admin.Ref(), map[string]any{
		"email": admin.Email,
	})

	if s.mailFrom != "" {
		s.SendMail(Mail{
			From:    s.mailFrom,
			To:      []string{admin.Email},
			Subject: "New sign-in to your administrator account",
			Text:    fmt.Sprintf("Hello %s,\r\n\r\nA new sign-in to your account happened at %s.\r\n", admin.FirstName, time.Now().UTC().Format(time.RFC1123)),
		})
	}

	return pair, nil
}

// VerifyOTP checks a one time password
func (s *Auther) VerifyOTP(ctx context.Context, code string) error {
	if err := s.otp.VerifyOTP(ctx, code); err != nil {
		s.emitAuthEvent(ctx, ActivityEventOTPFailure, AccountRef{}, map[string]any{
			"error": err.Error(),
		})
		return err
	}
	return nil
}

// Refresh rotates a refresh token. The presented token must be the latest
// one stored for its account, afterwards it no longer verifies. Concurrent
// calls with the same token rotate it once.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokenService.ValidateRefresh(refreshToken)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, AccountRef{}, map[string]any{
			"error": err.Error(),
		})
		return nil, withCause(ErrInvalidRefreshToken, err, nil)
	}

	ref, err := claims.AccountRef()
	if err != nil {
		return nil, withCause(ErrInvalidRefreshToken, err, nil)
	}

	pair, err := s.tokenService.IssuePair(payloadFor(ref))
	if err != nil {
		s.logger.Error("Refresh issue pair error", "error", err)
		return nil, err
	}

	if err := s.vault.Rotate(ctx, ref, refreshToken, pair.RefreshToken); err != nil {
		s.logger.Warn("Refresh rejected token", "account", ref.String(), "error", err)
		s.emitAuthEvent(ctx, ActivityEventRefreshFailure, ref, map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	s.emitAuthEvent(ctx, ActivityEventTokenRefreshed, ref, nil)

	return pair, nil
}

// SignOut revokes the stored refresh token of ref
func (s *Auther) SignOut(ctx context.Context, ref AccountRef) error {
	if ref.IsZero() {
		return ErrAuthenticationRequired
	}

	if err := s.vault.Revoke(ctx, ref); err != nil {
		s.logger.Error("SignOut revoke error", "account", ref.String(), "error", err)
		return err
	}

	s.emitAuthEvent(ctx, ActivityEventSignOut, ref, nil)
	return nil
}

// SendMail delivers mail in the background. Failures are logged and never
// reach the caller.
func (s *Auther) SendMail(mail Mail) {
	mailer := s.mailer
	logger := s.logger
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), defaultMailTimeout)
		defer cancel()
		if err := mailer.SendMail(ctx, mail); err != nil {
			logger.Error("SendMail delivery error", "to", mail.To, "error", err)
		}
	}()
}

func (s *Auther) startSession(ctx context.Context, ref AccountRef) (*TokenPair, error) {
	pair, err := s.tokenService.IssuePair(payloadFor(ref))
	if err != nil {
		return nil, err
	}

	if err := s.vault.Store(ctx, ref, pair.RefreshToken); err != nil {
		return nil, err
	}

	return pair, nil
}

func (s *Auther) phoneRegion() string {
	if s.config == nil {
		return DefaultPhoneRegion
	}
	if region := strings.TrimSpace(s.config.GetPhoneRegion()); region != "" {
		return region
	}
	return DefaultPhoneRegion
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, ref AccountRef, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType: eventType,
		Account:   ref,
		Role:      ref.Role(),
		Metadata:  metadata,
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error", "error", err)
	}
}

func payloadFor(ref AccountRef) TokenPayload {
	return TokenPayload{SubjectID: ref.ID.String(), Role: ref.Role()}
}
