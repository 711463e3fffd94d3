package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.users))
	for _, u := range repo.db.users {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.users {
		if usr.Email == email && !isExcluded(*usr, excludedUsers) {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.query() {
		if filter != nil {
			if filter.Search != "" && !containsFold(filter.Search, usr.FullName, usr.Username, usr.Email) {
				continue
			}
			if filter.Role != "" && usr.Role != filter.Role {
				continue
			}
			if filter.Status != "" && usr.Status != filter.Status {
				continue
			}
		}
		users = append(users, usr)
	}

	sortSlice(users, ordering, func(usr user.User, field string) interface{} {
		switch field {
		case "updated_at":
			return usr.UpdatedAt
		case "last_login":
			return usr.LastLogin
		case "email":
			return usr.Email
		case "full_name":
			return usr.FullName
		case "username":
			return usr.Username
		default:
			return usr.CreatedAt
		}
	})
	return users, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok && (filter.Email == "" || usr.Email == filter.Email) {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

// DeleteUsersByID deletes users along with their enrollments & lesson progress.
func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.users[id]; !ok {
			continue
		}
		delete(repo.db.users, id)
		for eid, e := range repo.db.enrollments {
			if e.UserID == id {
				delete(repo.db.enrollments, eid)
			}
		}
		for pid, p := range repo.db.lessonProgress {
			if p.UserID == id {
				delete(repo.db.lessonProgress, pid)
			}
		}
		n++
	}
	return n, nil
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

// containsFold reports whether any of vals contains substr, case-insensitively.
func containsFold(substr string, vals ...string) bool {
	substr = strings.ToLower(substr)
	for _, v := range vals {
		if strings.Contains(strings.ToLower(v), substr) {
			return true
		}
	}
	return false
}

// sortSlice stable-sorts s by the orderings, using key to read the value of a field.
func sortSlice[T any](s []T, ordering []core.DBOrdering, key func(T, string) interface{}) {
	if len(ordering) == 0 {
		return
	}
	sort.SliceStable(s, func(i, j int) bool {
		for _, ord := range ordering {
			c := compare(key(s[i], ord.Field), key(s[j], ord.Field))
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}
