package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dbcalm/dbcalm/internal/auth"
	"github.com/dbcalm/dbcalm/internal/db"
)

func newClientsCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{
		Use:   "clients",
		Short: "Manage API client credentials directly against the persistence port",
	}

	root.AddCommand(newClientsAddCmd(configPath))
	root.AddCommand(newClientsDeleteCmd(configPath))
	root.AddCommand(newClientsUpdateCmd(configPath))
	root.AddCommand(newClientsListCmd(configPath))

	return root
}

func newClientsAddCmd(configPath *string) *cobra.Command {
	var label, scopes string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a client credential; prints the plaintext secret once",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			secret, err := generateSecret()
			if err != nil {
				return fmt.Errorf("clients add: generating secret: %w", err)
			}
			hash, err := auth.HashPassword(secret)
			if err != nil {
				return fmt.Errorf("clients add: hashing secret: %w", err)
			}

			cl := &db.Client{Label: label, Scopes: splitScopes(scopes), Secret: hash}
			if err := c.clients.Create(cmd.Context(), cl); err != nil {
				return fmt.Errorf("clients add: %w", err)
			}

			fmt.Printf("client_id: %s\nsecret:    %s\n", cl.ID, secret)
			fmt.Println("the secret above will not be shown again")
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "human-readable label for this client")
	cmd.Flags().StringVar(&scopes, "scopes", "operator", "comma-separated scope list")

	return cmd
}

func newClientsDeleteCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a client credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("clients delete: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			if err := c.clients.Delete(cmd.Context(), id); err != nil {
				return fmt.Errorf("clients delete: %w", err)
			}
			fmt.Printf("deleted client %s\n", id)
			return nil
		},
	}
}

func newClientsUpdateCmd(configPath *string) *cobra.Command {
	var label, scopes string

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a client credential's label and/or scopes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("clients update: invalid id %q: %w", args[0], err)
			}

			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			cl, err := c.clients.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("clients update: %w", err)
			}

			if cmd.Flags().Changed("label") {
				cl.Label = label
			}
			if cmd.Flags().Changed("scopes") {
				cl.Scopes = splitScopes(scopes)
			}

			if err := c.clients.Update(cmd.Context(), cl); err != nil {
				return fmt.Errorf("clients update: %w", err)
			}
			fmt.Printf("updated client %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&label, "label", "", "new label")
	cmd.Flags().StringVar(&scopes, "scopes", "", "new comma-separated scope list")

	return cmd
}

func newClientsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List client credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := buildCore(*configPath)
			if err != nil {
				return err
			}
			defer c.close()

			clients, err := c.clients.List(cmd.Context())
			if err != nil {
				return fmt.Errorf("clients list: %w", err)
			}
			for _, cl := range clients {
				fmt.Printf("%s\t%s\t%s\n", cl.ID, cl.Label, strings.Join(cl.Scopes, ","))
			}
			return nil
		},
	}
}

func splitScopes(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
