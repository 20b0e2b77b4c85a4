package auth

import (
	"fmt"
	"log/slog"
	"testing"

	companionerrors "galene-companion/errors"
	"galene-companion/host"
	"galene-companion/mocks"
	"galene-companion/observability"
	"galene-companion/repositories"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestManager(t *testing.T, rawQuery string) (*Manager, repositories.ITokenRepository, *host.LaunchState) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	launch, err := host.ParseLaunchState(rawQuery)
	require.NoError(t, err)
	store := repositories.NewTokenRepository(db, slog.Default())
	return NewManager(store, launch, slog.Default()), store, launch
}

func Test_Restore_Rewrites_Launch_Parameters(t *testing.T) {
	req := require.New(t)
	manager, store, launch := newTestManager(t, "")
	req.NoError(store.Save("abc123"))

	token, ok := manager.Restore()
	req.True(ok)
	req.Equal("abc123", token)
	req.Equal("token=abc123", launch.Encode())

	session, ok := manager.SessionToken()
	req.True(ok)
	req.Equal("abc123", session)
}

func Test_Restore_Without_Stored_Token(t *testing.T) {
	req := require.New(t)
	manager, _, launch := newTestManager(t, "group=lecture")

	_, ok := manager.Restore()
	req.False(ok)
	req.Equal("group=lecture", launch.Encode())
}

func Test_Restore_Does_Not_Shadow_Incoming_Token(t *testing.T) {
	req := require.New(t)
	manager, store, launch := newTestManager(t, "token=NEW")
	req.NoError(store.Save("OLD"))

	token, ok := manager.Restore()
	req.True(ok)
	req.Equal("OLD", token)
	req.Equal("token=NEW", launch.Encode(), "fresh login must stay visible to capture")
}

func Test_Capture_Overrides_Restore(t *testing.T) {
	req := require.New(t)
	manager, store, _ := newTestManager(t, "token=NEW")
	req.NoError(store.Save("OLD"))

	token, ok := manager.Init()
	req.True(ok)
	req.Equal("NEW", token)

	stored, err := store.Load()
	req.NoError(err)
	req.Equal("NEW", stored)
}

func Test_Init_Falls_Back_To_Restored_Token(t *testing.T) {
	req := require.New(t)
	manager, store, _ := newTestManager(t, "")
	req.NoError(store.Save("OLD"))

	token, ok := manager.Init()
	req.True(ok)
	req.Equal("OLD", token)
}

func Test_HandleClose_Clears_Only_On_Normal_Code(t *testing.T) {
	req := require.New(t)
	manager, store, _ := newTestManager(t, "token=abc123")
	manager.Init()

	manager.HandleClose(host.CloseAbnormal, "connection lost")
	stored, err := store.Load()
	req.NoError(err)
	req.Equal("abc123", stored)

	manager.HandleClose(host.CloseNormal, "going away")
	_, err = store.Load()
	req.ErrorIs(err, companionerrors.ErrNoStoredToken)
	_, ok := manager.SessionToken()
	req.False(ok)
}

func Test_Capture_Keeps_Session_Mirror_On_Store_Failure(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	store := mocks.NewMockITokenRepository(ctrl)
	store.EXPECT().Save("abc123").Return(fmt.Errorf("disk full"))

	launch, err := host.ParseLaunchState("token=abc123")
	req.NoError(err)
	manager := NewManager(store, launch, slog.Default())

	token, ok := manager.Capture()
	req.True(ok)
	req.Equal("abc123", token)

	session, ok := manager.SessionToken()
	req.True(ok)
	req.Equal("abc123", session)
}

func Test_Token_Operations_Retrievable_By_Name(t *testing.T) {
	req := require.New(t)
	manager, _, _ := newTestManager(t, "token=abc123")
	manager.Init()

	registry := observability.NewRegistry()
	manager.RegisterDiagnostics(registry)
	req.Contains(registry.Names(), DiagGetToken)
	req.Contains(registry.Names(), DiagClearToken)
	req.Contains(registry.Names(), DiagRestoreToken)

	out, err := registry.Invoke(DiagGetToken)
	req.NoError(err)
	req.Equal(Fingerprint("abc123"), out)

	_, err = registry.Invoke(DiagClearToken)
	req.NoError(err)
	_, ok := manager.SessionToken()
	req.False(ok)
}

func Test_Fingerprint_Never_Exposes_Token(t *testing.T) {
	req := require.New(t)
	fp := Fingerprint("super-secret-token")
	req.NotContains(fp, "secret")
	req.Len(fp, 12)
	req.Equal(fp, Fingerprint("super-secret-token"))
	req.NotEqual(fp, Fingerprint("other-token"))
}
