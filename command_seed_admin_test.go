package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeedu/go-auth"
)

func TestSeedAdminHandler(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	handler := auth.NewSeedAdminHandler(f.repo)

	first, err := handler.Execute(ctx, auth.SeedAdminMessage{
		Email:     "  Principal@School.edu.vn ",
		FirstName: "Lan",
		LastName:  "Nguyen",
	})
	require.NoError(t, err)
	assert.Equal(t, "principal@school.edu.vn", first.Email)
	assert.NotEqual(t, "", first.ID.String())

	second, err := handler.Execute(ctx, auth.SeedAdminMessage{
		Email:     "principal@school.edu.vn",
		FirstName: "Someone",
		LastName:  "Else",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Lan", second.FirstName)

	msg := auth.SeedAdminMessage{Email: " Deputy@School.edu.vn", FirstName: "Binh", LastName: "Pham"}
	require.NoError(t, msg.Validate())
	deputy, err := handler.Execute(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "deputy@school.edu.vn", deputy.Email)

	assert.Equal(t, 2, f.count(t, (*auth.Admin)(nil)))
}

func TestSeedAdminHandler_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	handler := auth.NewSeedAdminHandler(f.repo)

	for _, msg := range []auth.SeedAdminMessage{
		{Email: "not-an-email", FirstName: "Lan", LastName: "Nguyen"},
		{Email: "principal@school.edu.vn", LastName: "Nguyen"},
		{Email: "principal@school.edu.vn", FirstName: "  ", LastName: "Nguyen"},
		{},
	} {
		_, err := handler.Execute(ctx, msg)
		assert.True(t, auth.HasTextCode(err, auth.TextCodeInvalidPayload), msg.Email)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := handler.Execute(cancelled, auth.SeedAdminMessage{Email: "principal@school.edu.vn", FirstName: "Lan", LastName: "Nguyen"})
	assert.Error(t, err)

	assert.Equal(t, 0, f.count(t, (*auth.Admin)(nil)))
}

func TestActivitySinks(t *testing.T) {
	ctx := context.Background()
	first := &recordingSink{}
	second := &recordingSink{}

	sinks := auth.ActivitySinks{first, nil, second}
	require.NoError(t, sinks.Record(ctx, auth.ActivityEvent{EventType: auth.ActivityEventSignOut}))

	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSignOut}, first.types())
	assert.Equal(t, []auth.ActivityEventType{auth.ActivityEventSignOut}, second.types())

	var nilFunc auth.ActivitySinkFunc
	assert.NoError(t, nilFunc.Record(ctx, auth.ActivityEvent{}))

	failing := auth.ActivitySinkFunc(func(context.Context, auth.ActivityEvent) error { return assert.AnError })
	assert.ErrorIs(t, auth.ActivitySinks{failing, first}.Record(ctx, auth.ActivityEvent{}), assert.AnError)
	assert.Len(t, first.types(), 2)
}
