package service_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/campus/internal/apperrors"
	"github.com/templui/campus/internal/db"
	"github.com/templui/campus/internal/deeplink"
	"github.com/templui/campus/internal/gateway"
	"github.com/templui/campus/internal/model"
	"github.com/templui/campus/internal/service"
	"github.com/templui/campus/internal/session"
	"github.com/templui/campus/internal/storage"
)

const scheme = "campusconnect"

type fixture struct {
	gw       *gateway.Gateway
	objects  string
	sessions *session.FileStore
	auth     *service.AuthService
	posts    *service.PostService
	files    *service.FileService
	profiles *service.ProfileService
	events   *service.EventService
	stats    *service.StatsService
}

func setupTestServices(t *testing.T, autoConfirm bool) *fixture {
	t.Helper()
	dir := t.TempDir()

	objects := filepath.Join(dir, "objects")
	store, err := storage.NewLocalStorage(objects, "http://objects.test")
	require.NoError(t, err)

	gw, err := gateway.Open(context.Background(), gateway.Options{
		Driver:     db.DriverSQLite,
		Connection: filepath.Join(dir, "test.db") + "?_pragma=foreign_keys(1)",
		Storage:    store,
	})
	require.NoError(t, err)
	t.Cleanup(func() { gw.Close() })

	sessions := session.NewFileStore(filepath.Join(dir, "session.json"))
	email := service.NewEmailService("", "noreply@campus.test", "Campus Connect", true)

	return &fixture{
		gw:       gw,
		objects:  objects,
		sessions: sessions,
		auth: service.NewAuthService(gw.Users, gw.Profiles, gw.Tokens, email, sessions,
			"test-secret", time.Hour, 24*time.Hour, scheme, autoConfirm),
		posts:    service.NewPostService(gw.Posts),
		files:    service.NewFileService(gw.Files, gw.Downloads, store),
		profiles: service.NewProfileService(gw.Profiles),
		events:   service.NewEventService(gw.EventAttendances),
		stats:    service.NewStatsService(gw.Stats),
	}
}

// signUp registers and confirms an account, returning its user id.
func (f *fixture) signUp(t *testing.T, email, name string) string {
	t.Helper()
	result, err := f.auth.SignUp(context.Background(), service.SignUpInput{
		Email:           email,
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            name,
		Role:            model.RoleStudent,
	})
	require.NoError(t, err)
	require.NotNil(t, result.Session)
	return result.User.ID
}

func (f *fixture) confirmationCode(t *testing.T, userID string) string {
	t.Helper()
	var code string
	err := f.gw.DB.Get(&code, f.gw.DB.Rebind(`SELECT token FROM tokens WHERE user_id = ? AND used_at IS NULL`), userID)
	require.NoError(t, err)
	return code
}

func TestSignUpNeedsEmailConfirmation(t *testing.T) {
	f := setupTestServices(t, false)
	ctx := context.Background()

	result, err := f.auth.SignUp(ctx, service.SignUpInput{
		Email:           "a@x.com",
		Password:        "secret1",
		ConfirmPassword: "secret1",
		Name:            "Ada",
		Role:            model.RoleStudent,
	})
	require.NoError(t, err)
	assert.True(t, result.NeedsEmailConfirmation)
	assert.Nil(t, result.Session)
	assert.NotEmpty(t, result.Message)
	assert.Equal(t, "Ada", result.User.Metadata.Name)

	_, err = f.auth.SignIn(ctx, "a@x.com", "secret1")
	assert.ErrorIs(t, err, service.ErrEmailNotVerified)
	assert.Equal(t, apperrors.Rejected, apperrors.KindOf(err))

	_, err = f.profiles.ByID(ctx, result.User.ID)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err), "profile waits for confirmation")

	link := deeplink.AuthCallback(scheme, f.confirmationCode(t, result.User.ID))
	sess, err := f.auth.ExchangeCode(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, sess.UserID)

	profile, err := f.profiles.ByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.Name)
	assert.Equal(t, model.RoleStudent, profile.Role)

	restored, err := f.auth.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.AccessToken, restored.AccessToken)

	_, err = f.auth.ExchangeCode(ctx, link)
	assert.ErrorIs(t, err, service.ErrInvalidCode, "codes are single use")

	require.NoError(t, f.auth.SignOut(ctx))
	_, err = f.auth.Restore(ctx)
	assert.ErrorIs(t, err, service.ErrNoSession)

	_, err = f.auth.SignIn(ctx, "A@X.com ", "secret1")
	require.NoError(t, err)
}

func TestSignUpValidatesLocally(t *testing.T) {
	f := setupTestServices(t, false)
	ctx := context.Background()

	tests := []struct {
		name string
		in   service.SignUpInput
	}{
		{"bad email", service.SignUpInput{Email: "nope", Password: "secret1", ConfirmPassword: "secret1", Name: "Ada", Role: "student"}},
		{"short password", service.SignUpInput{Email: "a@x.com", Password: "abc", ConfirmPassword: "abc", Name: "Ada", Role: "student"}},
		{"mismatch", service.SignUpInput{Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret2", Name: "Ada", Role: "student"}},
		{"no name", service.SignUpInput{Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret1", Role: "student"}},
		{"bad role", service.SignUpInput{Email: "a@x.com", Password: "secret1", ConfirmPassword: "secret1", Name: "Ada", Role: "dean"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.SignUp(ctx, tt.in)
			assert.Equal(t, apperrors.Validation, apperrors.KindOf(err))
		})
	}

	_, err := f.gw.Users.ByEmail(ctx, "a@x.com")
	assert.Error(t, err, "nothing reached the database")
}

func TestExchangeCodeRequiresVerifierFromThisDevice(t *testing.T) {
	f := setupTestServices(t, false)
	ctx := context.Background()

	result, err := f.auth.SignUp(ctx, service.SignUpInput{
		Email: "b@x.com", Password: "secret1", ConfirmPassword: "secret1", Name: "Bea", Role: model.RoleLecturer,
	})
	require.NoError(t, err)

	// opened on another device: no pending verifier
	require.NoError(t, f.sessions.Clear())

	_, err = f.auth.ExchangeCode(ctx, deeplink.AuthCallback(scheme, f.confirmationCode(t, result.User.ID)))
	assert.ErrorIs(t, err, service.ErrInvalidCode)

	user, err := f.gw.Users.ByID(ctx, result.User.ID)
	require.NoError(t, err)
	assert.False(t, user.IsConfirmed())
}

func TestPostSearchUnionsAuthorMatches(t *testing.T) {
	f := setupTestServices(t, true)
	ctx := context.Background()

	ada := f.signUp(t, "ada@x.com", "Ada Lovelace")
	grace := f.signUp(t, "grace@x.com", "Grace Hopper")

	first, err := f.posts.Create(ctx, service.PostInput{Title: "Thanks Grace", Content: "for the compiler", Type: model.PostTypeDiscussion}, ada)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := f.posts.Create(ctx, service.PostInput{Title: "Exam help", Content: "anyone?", Type: model.PostTypeHelp}, grace)
	require.NoError(t, err)

	found, err := f.posts.List(ctx, service.PostFilter{Query: "grace"})
	require.NoError(t, err)
	require.Len(t, found, 2, "title match and author match, deduplicated")
	assert.Equal(t, second.ID, found[0].ID)
	assert.Equal(t, first.ID, found[1].ID)

	found, err = f.posts.List(ctx, service.PostFilter{Query: "LOVELACE"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, first.ID, found[0].ID)
	assert.Equal(t, "Ada Lovelace", found[0].Author.Name)
	assert.Zero(t, found[0].LikesCount)

	found, err = f.posts.List(ctx, service.PostFilter{Type: model.PostTypeHelp})
	require.NoError(t, err)
	require.Len(t, found, 1)

	// folding is not limited to ASCII
	third, err := f.posts.Create(ctx, service.PostInput{Title: "ÉCOLE d'été", Content: "Cours de Mathématiques", Type: model.PostTypeEvent}, ada)
	require.NoError(t, err)
	for _, q := range []string{"école", "ÉTÉ", "MATHÉMATIQUES"} {
		found, err = f.posts.List(ctx, service.PostFilter{Query: q})
		require.NoError(t, err, q)
		require.Len(t, found, 1, q)
		assert.Equal(t, third.ID, found[0].ID, q)
	}

	_, err = f.posts.Create(ctx, service.PostInput{Title: " ", Content: "C", Type: model.PostTypeHelp}, ada)
	assert.Equal(t, apperrors.Validation, apperrors.KindOf(err))
}

func TestPostOwnership(t *testing.T) {
	f := setupTestServices(t, true)
	ctx := context.Background()

	author := f.signUp(t, "ada@x.com", "Ada")
	other := f.signUp(t, "grace@x.com", "Grace")

	post, err := f.posts.Create(ctx, service.PostInput{Title: "T", Content: "C", Type: model.PostTypeDiscussion}, author)
	require.NoError(t, err)

	title := "T2"
	_, err = f.posts.Update(ctx, post.ID, service.PostPatch{Title: &title}, other)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))

	err = f.posts.Delete(ctx, post.ID, other)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))

	stored, err := f.posts.Get(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "T", stored.Title)

	updated, err := f.posts.Update(ctx, post.ID, service.PostPatch{Title: &title}, author)
	require.NoError(t, err)
	assert.Equal(t, "T2", updated.Title)
	assert.Equal(t, "C", updated.Content)

	require.NoError(t, f.posts.Delete(ctx, post.ID, author))
	_, err = f.posts.Get(ctx, post.ID)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))

	name := "Mallory"
	_, err = f.profiles.Update(ctx, author, service.ProfilePatch{Name: &name}, other)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
}

func countObjects(t *testing.T, dir string) int {
	t.Helper()
	n := 0
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			n++
		}
		return err
	})
	require.NoError(t, err)
	return n
}

func TestFileUploadIsTwoPhase(t *testing.T) {
	f := setupTestServices(t, true)
	ctx := context.Background()

	owner := f.signUp(t, "ada@x.com", "Ada")
	other := f.signUp(t, "grace@x.com", "Grace")
	content := []byte("%PDF-1.7\nlecture notes")

	// no profile for this uploader: the row is rejected and the object removed
	_, err := f.files.Upload(ctx, "ghost", service.UploadInput{Name: "notes.pdf", Size: int64(len(content)), Body: bytes.NewReader(content)})
	require.Error(t, err)
	assert.Zero(t, countObjects(t, f.objects))

	file, err := f.files.Upload(ctx, owner, service.UploadInput{
		Name:     "Week 1 Notes.pdf",
		Category: "Lectures",
		Size:     int64(len(content)),
		Body:     bytes.NewReader(content),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, "PDF", file.Format())
	assert.True(t, strings.HasPrefix(file.StoragePath, owner+"/"))
	assert.True(t, strings.HasPrefix(file.URL, "http://objects.test/"+owner+"/"))
	assert.Equal(t, 1, countObjects(t, f.objects))

	found, err := f.files.List(ctx, service.FileFilter{Query: "NOTES"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Ada", found[0].UploaderName)

	found, err = f.files.List(ctx, service.FileFilter{Query: "lecture"})
	require.NoError(t, err)
	assert.Len(t, found, 1, "category matches too")

	require.NoError(t, f.files.RecordDownload(ctx, other, file.ID))
	require.NoError(t, f.files.RecordDownload(ctx, other, file.ID))

	err = f.files.Delete(ctx, file.ID, other)
	assert.Equal(t, apperrors.NotFound, apperrors.KindOf(err))
	assert.Equal(t, 1, countObjects(t, f.objects))

	stats, err := f.stats.ForUser(ctx, other)
	require.NoError(t, err)
	assert.True(t, stats.Loaded)
	assert.Equal(t, 2, stats.FilesDownloaded, "downloads are not deduplicated")
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Zero(t, stats.FilesUploaded)

	require.NoError(t, f.files.Delete(ctx, file.ID, owner))
	assert.Zero(t, countObjects(t, f.objects))
}

func TestEventAttendance(t *testing.T) {
	f := setupTestServices(t, true)
	ctx := context.Background()
	user := f.signUp(t, "ada@x.com", "Ada")

	require.NoError(t, f.events.Attend(ctx, user, "open-day", "Open Day"))
	require.NoError(t, f.events.Attend(ctx, user, "open-day", "Open Day"))

	attending, err := f.events.Attending(ctx, user)
	require.NoError(t, err)
	require.Len(t, attending, 1)

	require.NoError(t, f.events.Leave(ctx, user, "open-day"))
	require.NoError(t, f.events.Leave(ctx, user, "open-day"))

	stats, err := f.stats.ForUser(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, stats.EventsAttended)
}
