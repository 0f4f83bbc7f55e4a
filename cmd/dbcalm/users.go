package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/db"
)

func newUsersCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "users",
		Short: "Manage operator logins directly against the persistence port",
	}

	root.AddCommand(newUsersAddCmd(configPath))
	root.AddCommand(newUsersDeleteCmd(configPath))
	root.AddCommand(newUsersUpdatePasswordCmd(configPath))
	root.AddCommand(newUsersListCmd(configPath))

	return root
}

func newUsersAddCmd(configPath *string) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an operator login",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("users add: hashing password: %w", err)
			}

			u := &db.User{Username: username, Password: hash}
			if err := c.users.Create(cmd.Context(), u); err != nil {
				return fmt.Errorf("users add: %w", err)
			}
			fmt.Printf("created user %s (%s)\n", u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "login name (required)")
	cmd.Flags().StringVar(&password, "password", "", "plaintext password (required)")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUsersDeleteCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an operator login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("users delete: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			if err := c.users.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("users delete: %w", err)
			}
			fmt.Printf("deleted user %s\n", id)
			return nil
		},
	}
	return cmd
}

func newUsersUpdatePasswordCmd(configPath *string) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "update-password <id>",
		Short: "Reset an operator's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("users update-password: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			u, err := c.users.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("users update-password: %w", err)
			}

			hash, err := auth.HashPassword(password)
			if err != nil {
				return fmt.Errorf("users update-password: hashing password: %w", err)
			}
			u.Password = hash

			if err := c.users.Update(cmd.Context(), u); err != nil {
				return fmt.Errorf("users update-password: %w", err)
			}
			fmt.Printf("updated password for user %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&password, "password", "", "new plaintext password (required)")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}

func newUsersListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List operator logins",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			users, err := c.users.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("users list: %w", err)
			}
			for _, u := range users {
				fmt.Printf("%s\t%s\n", u.ID, u.Username)
			}
			return nil
		},
	}
}
