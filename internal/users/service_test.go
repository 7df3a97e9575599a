package users

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	users map[string]User
	seq   int
}

func newMemStore() *memStore { return &memStore{users: map[string]User{}} }

func (m *memStore) List(_ context.Context, role Role) ([]User, error) {
	res := []User{}
	for _, u := range m.users {
		if role == "" || u.Role == role {
			res = append(res, u)
		}
	}
	return res, nil
}

func (m *memStore) Get(_ context.Context, id string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByEmail(_ context.Context, email string) (User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memStore) Create(_ context.Context, u User) (User, error) {
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return User{}, ErrDuplicate
		}
	}
	m.seq++
	u.ID = "u-" + strconv.Itoa(m.seq)
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) Update(_ context.Context, id, fullName, email, hash string) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	u.FullName = fullName
	if email != "" {
		u.Email = email
	}
	if hash != "" {
		u.PasswordHash = hash
	}
	m.users[id] = u
	return u, nil
}

func (m *memStore) Delete(_ context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memStore) CountByRole(_ context.Context, role Role) (int, error) {
	n := 0
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

func newTestService() (*Service, *memStore) {
	store := newMemStore()
	return NewService(store, bcrypt.MinCost), store
}

func TestCreateHashesAndNormalizes(t *testing.T) {
	svc, store := newTestService()

	u, err := svc.Create(context.Background(), CreateInput{
		Email: "  Guru@School.ID ", Password: "rahasia123", FullName: " Budi ", Role: RoleTeacher,
	})
	require.NoError(t, err)
	assert.Equal(t, "guru@school.id", u.Email)
	assert.Equal(t, "Budi", u.FullName)
	assert.NotEqual(t, "rahasia123", store.users[u.ID].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(store.users[u.ID].PasswordHash), []byte("rahasia123")))

	_, err = svc.Create(context.Background(), CreateInput{
		Email: "guru@school.id", Password: "another123", FullName: "Other", Role: RoleTeacher,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestCreateValidation(t *testing.T) {
	valid := CreateInput{Email: "a@b.id", Password: "password1", FullName: "Ani", Role: RoleAdmin}
	tests := []struct {
		name   string
		mutate func(*CreateInput)
		field  string
	}{
		{"bad email", func(in *CreateInput) { in.Email = "not-an-email" }, "Email"},
		{"short password", func(in *CreateInput) { in.Password = "short" }, "Password"},
		{"missing name", func(in *CreateInput) { in.FullName = "   " }, "FullName"},
		{"unknown role", func(in *CreateInput) { in.Role = "janitor" }, "Role"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService()
			in := valid
			tt.mutate(&in)

			_, err := svc.Create(context.Background(), in)
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
			assert.Empty(t, store.users)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService()
	created, err := svc.Create(context.Background(), CreateInput{
		Email: "kepala@school.id", Password: "principal1", FullName: "Kepala", Role: RolePrincipal,
	})
	require.NoError(t, err)

	u, err := svc.Authenticate(context.Background(), "KEPALA@school.id", "principal1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, u.ID)

	_, err = svc.Authenticate(context.Background(), "kepala@school.id", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(context.Background(), "nobody@school.id", "principal1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateKeepsPasswordWhenEmpty(t *testing.T) {
	svc, store := newTestService()
	u, err := svc.Create(context.Background(), CreateInput{
		Email: "t@school.id", Password: "password1", FullName: "T", Role: RoleTeacher,
	})
	require.NoError(t, err)
	before := store.users[u.ID].PasswordHash

	updated, err := svc.Update(context.Background(), u.ID, UpdateInput{FullName: "Teacher T"})
	require.NoError(t, err)
	assert.Equal(t, "Teacher T", updated.FullName)
	assert.Equal(t, "t@school.id", updated.Email)
	assert.Equal(t, before, store.users[u.ID].PasswordHash)

	_, err = svc.Update(context.Background(), u.ID, UpdateInput{FullName: "Teacher T", Password: "newpassword"})
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "t@school.id", "newpassword")
	assert.NoError(t, err)

	_, err = svc.Update(context.Background(), "missing", UpdateInput{FullName: "X"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRejectsUnknownRole(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.List(context.Background(), "janitor")
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)

	list, err := svc.List(context.Background(), RoleTeacher)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteAndCount(t *testing.T) {
	svc, _ := newTestService()
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), CreateInput{
			Email: "t" + strconv.Itoa(i) + "@school.id", Password: "password1", FullName: "T", Role: RoleTeacher,
		})
		require.NoError(t, err)
	}
	n, err := svc.CountByRole(context.Background(), RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, svc.Delete(context.Background(), "u-1"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "u-1"), ErrNotFound)

	n, err = svc.CountByRole(context.Background(), RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
