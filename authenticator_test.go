package auth_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedu/go-auth"
)

type fakeVerifier struct {
	identity *auth.FederatedIdentity
	err      error
}

func (v fakeVerifier) Verify(_ context.Context, credential string) (*auth.FederatedIdentity, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.identity, nil
}

func subjectOf(t *testing.T, f *fixture, pair *auth.TokenPair) *auth.JWTClaims {
	t.Helper()
	claims, err := f.auther.TokenService().ValidateAccess(pair.AccessToken)
	require.NoError(t, err)
	return claims
}

func TestAuther_SignUpStudentThenSignIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.NoError(t, err)
	require.NotNil(t, pair)

	claims := subjectOf(t, f, pair)
	assert.Equal(t, "Student", claims.Role())

	student, err := f.repo.Students().FindOne(ctx, auth.ByPhoneNumber("+84912345678"))
	require.NoError(t, err)
	assert.Equal(t, student.ID.String(), claims.UserID())
	assert.Equal(t, "school-12", student.OrganizationID)

	signedIn, err := f.auther.SignIn(ctx, student.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Student", subjectOf(t, f, signedIn).Role())

	refreshClaims, err := f.auther.TokenService().ValidateRefresh(signedIn.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "Student", refreshClaims.Role())

	stored, err := f.repo.Students().FindByID(ctx, student.ID)
	require.NoError(t, err)
	assert.NoError(t, auth.CompareRefreshTokenAndHash(signedIn.RefreshToken, stored.CurrentRefreshTokenHash))
	assert.Error(t, auth.CompareRefreshTokenAndHash(pair.RefreshToken, stored.CurrentRefreshTokenHash))
	assert.Error(t, auth.CompareRefreshTokenAndHash(signedIn.AccessToken, stored.CurrentRefreshTokenHash))

	assert.Equal(t, []auth.ActivityEventType{
		auth.ActivityEventSignUpSuccess,
		auth.ActivityEventSignInSuccess,
	}, f.sink.types())
}

func TestAuther_SignUpCitizenStoresHashOnCitizen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	msg := citizenMessage("+84 987 654 321")
	msg.FirstName = "  " + msg.FirstName + " "
	pair, err := f.auther.SignUpCitizen(ctx, msg)
	require.NoError(t, err)

	claims := subjectOf(t, f, pair)
	assert.Equal(t, "Citizen", claims.Role())

	citizen, err := f.repo.Citizens().FindOne(ctx, auth.ByPhoneNumber("+84987654321"))
	require.NoError(t, err)
	assert.NoError(t, auth.CompareRefreshTokenAndHash(pair.RefreshToken, citizen.CurrentRefreshTokenHash))
	assert.Equal(t, strings.TrimSpace(msg.FirstName), citizen.FirstName)

	assert.Equal(t, 0, f.count(t, (*auth.Student)(nil)))

	claim, err := f.repo.PhoneNumbers().Owner(ctx, "+84987654321")
	require.NoError(t, err)
	require.NotNil(t, claim)
	assert.Equal(t, auth.KindCitizen, claim.AccountKind)
	assert.Equal(t, citizen.ID, claim.AccountID)

	signedIn, err := f.auther.SignIn(ctx, citizen.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Citizen", subjectOf(t, f, signedIn).Role())
}

func TestAuther_SignUpRejectsTakenPhoneAcrossKinds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.NoError(t, err)

	pair, err := f.auther.SignUpCitizen(ctx, citizenMessage("+84912345678"))
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodePhoneNumberExists))

	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr))
	assert.Equal(t, goerrors.CategoryConflict, richErr.Category)

	pair, err = f.auther.SignUpStudent(ctx, studentMessage("0912 345 678"))
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodePhoneNumberExists))

	assert.Equal(t, 1, f.count(t, (*auth.Student)(nil)))
	assert.Equal(t, 0, f.count(t, (*auth.Citizen)(nil)))
	assert.Equal(t, 1, f.count(t, (*auth.PhoneNumberClaim)(nil)))
	assert.Contains(t, f.sink.types(), auth.ActivityEventSignUpFailure)
}

func TestAuther_SignUpCitizenPhoneTakenByCitizen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	require.NoError(t, err)

	_, err = f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodePhoneNumberExists))
	assert.Equal(t, 1, f.count(t, (*auth.Citizen)(nil)))
}

func TestAuther_ConcurrentSignUpSamePhone(t *testing.T) {
	ctx := context.Background()

	student := func(f *fixture) error {
		_, err := f.auther.SignUpStudent(ctx, studentMessage("0901234567"))
		return err
	}
	citizen := func(f *fixture) error {
		_, err := f.auther.SignUpCitizen(ctx, citizenMessage("0901234567"))
		return err
	}

	cases := []struct {
		name   string
		signUp [2]func(f *fixture) error
	}{
		{name: "two students", signUp: [2]func(f *fixture) error{student, student}},
		{name: "student and citizen", signUp: [2]func(f *fixture) error{student, citizen}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)

			var (
				wg    sync.WaitGroup
				start = make(chan struct{})
				errs  = make([]error, 2)
			)

			for i, signUp := range tc.signUp {
				wg.Add(1)
				go func(i int, signUp func(f *fixture) error) {
					defer wg.Done()
					<-start
					errs[i] = signUp(f)
				}(i, signUp)
			}

			close(start)
			wg.Wait()

			succeeded, conflicts := 0, 0
			for _, err := range errs {
				switch {
				case err == nil:
					succeeded++
				case auth.HasTextCode(err, auth.TextCodePhoneNumberExists):
					conflicts++
				default:
					t.Fatalf("unexpected error: %v", err)
				}
			}

			assert.Equal(t, 1, succeeded)
			assert.Equal(t, 1, conflicts)

			total := f.count(t, (*auth.Student)(nil)) + f.count(t, (*auth.Citizen)(nil))
			assert.Equal(t, 1, total)
			assert.Equal(t, 1, f.count(t, (*auth.PhoneNumberClaim)(nil)))
		})
	}
}

func TestAuther_SignUpValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auther.SignUpStudent(ctx, auth.SignUpStudentMessage{PhoneNumber: "0912345678"})
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))

	_, err = f.auther.SignUpCitizen(ctx, citizenMessage("not-a-phone"))
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPhoneNumber))

	blankStudent := studentMessage("0912345678")
	blankStudent.FirstName = "   "
	_, err = f.auther.SignUpStudent(ctx, blankStudent)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))

	blankCitizen := citizenMessage("0987654321")
	blankCitizen.LastName = "\t "
	_, err = f.auther.SignUpCitizen(ctx, blankCitizen)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload))

	assert.Equal(t, 0, f.count(t, (*auth.Student)(nil)))

	assert.Equal(t, 0, f.count(t, (*auth.Citizen)(nil)))
	assert.Equal(t, 0, f.count(t, (*auth.PhoneNumberClaim)(nil)))
}

func TestAuther_SignUpRollsBackWhenIssuanceFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.config.refreshKey = ""

	pair, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeTokenProcessing))

	assert.Equal(t, 0, f.count(t, (*auth.Student)(nil)))
	assert.Equal(t, 0, f.count(t, (*auth.PhoneNumberClaim)(nil)))
}

func TestAuther_SignUpRollsBackWhenHashingFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.auther.Vault().WithHasher(func(string, int) (string, error) {
		return "", errors.New("hasher unavailable")
	})

	pair, err := f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeTokenProcessing))

	assert.Equal(t, 0, f.count(t, (*auth.Citizen)(nil)))
	assert.Equal(t, 0, f.count(t, (*auth.PhoneNumberClaim)(nil)))

	// the number is still free once hashing recovers
	f.auther.Vault().WithHasher(auth.HashRefreshToken)
	_, err = f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	require.NoError(t, err)
}

func TestAuther_SignUpCancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.Error(t, err)
	assert.Equal(t, 0, f.count(t, (*auth.Student)(nil)))
}

func TestAuther_SignInUnknownAccount(t *testing.T) {
	f := newFixture(t)

	pair, err := f.auther.SignIn(context.Background(), "2d1f7a4e-0000-4000-8000-000000000000")
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAccountNotFound))
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSignInFailure}, f.sink.types())
}

func TestAuther_RefreshRotatesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.NoError(t, err)

	second, err := f.auther.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)
	assert.Equal(t, "Student", subjectOf(t, f, second).Role())

	_, err = f.auther.Refresh(ctx, first.RefreshToken)
	require.Error(t, err)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken))

	third, err := f.auther.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, third)

	assert.Contains(t, f.sink.types(), auth.ActivityEventTokenRefreshed)
	assert.Contains(t, f.sink.types(), auth.ActivityEventRefreshFailure)
}

func TestAuther_ConcurrentRefreshSameToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.NoError(t, err)

	const callers = 6
	var (
		wg      sync.WaitGroup
		start   = make(chan struct{})
		pairs   = make([]*auth.TokenPair, callers)
		results = make([]error, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			pairs[i], results[i] = f.auther.Refresh(ctx, first.RefreshToken)
		}(i)
	}
	close(start)
	wg.Wait()

	var winner *auth.TokenPair
	for i, err := range results {
		if err == nil {
			require.Nil(t, winner, "refresh token redeemed more than once")
			winner = pairs[i]
			continue
		}
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken), err.Error())
	}
	require.NotNil(t, winner)

	next, err := f.auther.Refresh(ctx, winner.RefreshToken)
	require.NoError(t, err)
	require.NotNil(t, next)

	_, err = f.auther.Refresh(ctx, first.RefreshToken)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken))
}

func TestAuther_RefreshRejectsAccessTokens(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	require.NoError(t, err)

	_, err = f.auther.Refresh(ctx, pair.AccessToken)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken))

	_, err = f.auther.Refresh(ctx, "garbage")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken))
}

func TestAuther_SignOut(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.auther.SignUpStudent(ctx, studentMessage("0912345678"))
	require.NoError(t, err)

	ref, err := subjectOf(t, f, pair).AccountRef()
	require.NoError(t, err)

	require.NoError(t, f.auther.SignOut(ctx, ref))

	_, err = f.auther.Refresh(ctx, pair.RefreshToken)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidRefreshToken))

	err = f.auther.SignOut(ctx, auth.AccountRef{})
	assert.ErrorIs(t, err, auth.ErrAuthenticationRequired)

	assert.Contains(t, f.sink.types(), auth.ActivityEventSignOut)
}

func TestAuther_VerifyOTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.NoError(t, f.auther.VerifyOTP(ctx, auth.DefaultOTPCode))

	err := f.auther.VerifyOTP(ctx, "123456")
	require.Error(t, err)
	assert.ErrorIs(t, err, auth.ErrInvalidOTP)
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventOTPFailure}, f.sink.types())

	f.auther.WithOTPVerifier(auth.NewStaticOTPVerifier("424242"))
	assert.NoError(t, f.auther.VerifyOTP(ctx, "424242"))
	assert.Error(t, f.auther.VerifyOTP(ctx, auth.DefaultOTPCode))
}

func TestAuther_FederatedSignInAdmin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	admin := f.seedAdmin(t, "principal@school.edu.vn")

	pair, err := f.auther.FederatedSignInAdmin(ctx, "Principal@school.edu.vn")
	require.NoError(t, err)

	access := subjectOf(t, f, pair)
	assert.Equal(t, "Admin", access.Role())
	assert.Equal(t, admin.ID.String(), access.UserID())

	refresh, err := f.auther.TokenService().ValidateRefresh(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "Admin", refresh.Role())

	stored, err := f.repo.Admins().FindByID(ctx, admin.ID)
	require.NoError(t, err)
	assert.NoError(t, auth.CompareRefreshTokenAndHash(pair.RefreshToken, stored.CurrentRefreshTokenHash))

	rotated, err := f.auther.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "Admin", subjectOf(t, f, rotated).Role())
}

func TestAuther_FederatedSignInUnknownEmail(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	pair, err := f.auther.FederatedSignInAdmin(ctx, "stranger@example.com")
	require.Error(t, err)
	assert.Nil(t, pair)
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAdminNotRegistered))

	assert.Equal(t, 0, f.count(t, (*auth.Admin)(nil)))
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventFederatedFailure}, f.sink.types())
}

func TestAuther_FederatedSignInWithVerifier(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedAdmin(t, "principal@school.edu.vn")

	delivered := make(chan auth.Mail, 1)
	f.auther.
		WithMailer(auth.MailerFunc(func(_ context.Context, mail auth.Mail) error {
			delivered <- mail
			return nil
		}), "noreply@safeedu.vn").
		WithFederatedIdentityVerifier(fakeVerifier{identity: &auth.FederatedIdentity{
			Provider:      "google",
			Subject:       "1234567890",
			Email:         "principal@school.edu.vn",
			EmailVerified: true,
		}})

	pair, err := f.auther.FederatedSignIn(ctx, "id-token")
	require.NoError(t, err)
	assert.Equal(t, "Admin", subjectOf(t, f, pair).Role())

	select {
	case mail := <-delivered:
		assert.Equal(t, "noreply@safeedu.vn", mail.From)
		assert.Equal(t, []string{"principal@school.edu.vn"}, mail.To)
		assert.Contains(t, mail.Text, "Lan")
	case <-time.After(2 * time.Second):
		t.Fatal("sign-in notification was not sent")
	}

	assert.Contains(t, f.sink.types(), auth.ActivityEventFederatedSignIn)
}

func TestAuther_FederatedSignInRejectsCredentials(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name     string
		verifier auth.FederatedIdentityVerifier
	}{
		{name: "no provider", verifier: nil},
		{name: "verifier error", verifier: fakeVerifier{err: errors.New("bad signature")}},
		{name: "unverified email", verifier: fakeVerifier{identity: &auth.FederatedIdentity{Email: "principal@school.edu.vn"}}},
		{name: "missing email", verifier: fakeVerifier{identity: &auth.FederatedIdentity{EmailVerified: true}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.seedAdmin(t, "principal@school.edu.vn")
			f.auther.WithFederatedIdentityVerifier(tc.verifier)

			pair, err := f.auther.FederatedSignIn(ctx, "id-token")
			require.Error(t, err)
			assert.Nil(t, pair)
			assert.True(t, auth.HasTextCode(err, auth.TextCodeFederatedIdentity))
		})
	}
}

func TestAuther_FederatedSignInUnknownVerifiedEmail(t *testing.T) {
	f := newFixture(t)
	f.auther.WithFederatedIdentityVerifier(fakeVerifier{identity: &auth.FederatedIdentity{
		Email:         "stranger@example.com",
		EmailVerified: true,
	}})

	_, err := f.auther.FederatedSignIn(context.Background(), "id-token")
	assert.True(t, auth.HasTextCode(err, auth.TextCodeAdminNotRegistered))
	assert.Equal(t, 0, f.count(t, (*auth.Admin)(nil)))
}

func TestAuther_ActivityEventsCarryRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.auther.SignUpCitizen(ctx, citizenMessage("0987654321"))
	require.NoError(t, err)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	require.Len(t, f.sink.events, 1)
	event := f.sink.events[0]
	assert.Equal(t, auth.ActivityEventSignUpSuccess, event.EventType)
	assert.Equal(t, auth.RoleCitizen, event.Role)
	assert.Equal(t, auth.KindCitizen, event.Account.Kind)
	assert.False(t, event.OccurredAt.IsZero())
	assert.NotNil(t, event.Metadata)
}
