package main

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	exists := err == nil
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			ID:        uuid.New().String(),
			Email:     email,
			Role:      user.RoleStudent,
			CreatedAt: now,
		}
	}
	if name != "" {
		usr.FullName = name
	}
	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	usr.Status = user.StatusActive
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}

	if exists {
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	} else {
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	}
	return err
}
