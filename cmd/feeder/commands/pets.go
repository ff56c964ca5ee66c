package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/profile"
)

// PetsCmd groups the profile management commands.
type PetsCmd struct {
	Add    PetsAddCmd    `cmd:"" help:"Register or update a pet"`
	List   PetsListCmd   `cmd:"" help:"List registered pets"`
	Remove PetsRemoveCmd `cmd:"" help:"Remove a pet by breed id"`
}

// PetsAddCmd implements 'pets add'.
type PetsAddCmd struct {
	Name     string  `required:"" help:"Pet name"`
	Weight   float64 `required:"" help:"Body weight in kg"`
	Category int     `required:"" name:"breed-id" help:"Classifier category id"`
	Breed    string  `name:"breed" help:"Breed name shown on the dashboard"`
}

// PetsListCmd implements 'pets list'.
type PetsListCmd struct{}

// PetsRemoveCmd implements 'pets remove'.
type PetsRemoveCmd struct {
	Category int `arg:"" name:"breed-id" help:"Classifier category id"`
}

func openProfiles(root *CLI) (profile.Store, error) {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return nil, err
	}
	return profile.NewSQLiteStore(cfg.Profiles.Database, cfg.Feed.Ratio)
}

func (c *PetsAddCmd) Run(_ *Global, root *CLI) error {
	store, err := openProfiles(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return RunPetsAdd(context.Background(), os.Stdout, store, profile.Registration{
		Name: c.Name, Weight: c.Weight, Category: c.Category, Breed: c.Breed,
	})
}

func (c *PetsListCmd) Run(_ *Global, root *CLI) error {
	store, err := openProfiles(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return RunPetsList(context.Background(), os.Stdout, store)
}

func (c *PetsRemoveCmd) Run(_ *Global, root *CLI) error {
	store, err := openProfiles(root)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	if err := store.Delete(context.Background(), c.Category); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(os.Stdout, "Removed pet with breed id %d\n", c.Category)
	return nil
}

func RunPetsAdd(ctx context.Context, out io.Writer, store profile.Store, r profile.Registration) error {
	p, err := store.Save(ctx, r)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "Saved %s (breed id %d): %.2f kg, portion %.3f kg\n", p.Name, p.Category, p.Weight, p.Target)
	return nil
}

func RunPetsList(ctx context.Context, out io.Writer, store profile.Store) error {
	pets, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(pets) == 0 {
		_, _ = fmt.Fprintln(out, "No pets registered")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BREED ID\tNAME\tBREED\tWEIGHT (kg)\tPORTION (kg)")
	for _, p := range pets {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t%.3f\n", p.Category, p.Name, p.Breed, p.Weight, p.Target)
	}
	return tw.Flush()
}
