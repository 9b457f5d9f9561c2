package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/farmshop/storefront/app/routes"
	"github.com/farmshop/storefront/config"
	"github.com/farmshop/storefront/database/seeders"
	"github.com/farmshop/storefront/pkg/migration"
	"github.com/farmshop/storefront/pkg/router"
)

// Migrate runs every pending migration.
func Migrate(out io.Writer) error {
	a, err := bootDB()
	if err != nil {
		return err
	}
	defer a.Close()
	n, err := migration.New(a.DB, out).Run()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d migration(s) ran\n", n)
	return nil
}

// Rollback reverses the last migration batch.
func Rollback(out io.Writer) error {
	a, err := bootDB()
	if err != nil {
		return err
	}
	defer a.Close()
	n, err := migration.New(a.DB, out).Rollback()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%d migration(s) rolled back\n", n)
	return nil
}

// MigrateStatus prints every registered migration and its batch.
func MigrateStatus(out io.Writer) error {
	a, err := bootDB()
	if err != nil {
		return err
	}
	defer a.Close()
	rows, err := migration.New(a.DB, out).Status()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "MIGRATION\tRAN\tBATCH")
	for _, s := range rows {
		ran, batch := "no", "-"
		if s.Ran {
			ran, batch = "yes", fmt.Sprint(s.Batch)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.Name, ran, batch)
	}
	return w.Flush()
}

// Seed migrates, then runs every registered seeder.
func Seed(ctx context.Context, out io.Writer) error {
	a, err := bootDB()
	if err != nil {
		return err
	}
	defer a.Close()
	if _, err := migration.New(a.DB, out).Run(); err != nil {
		return err
	}
	return seeders.RunAll(ctx, a.DB, out)
}

// RouteList prints the named routes. It needs no database.
func RouteList(out io.Writer, byPath bool) error {
	if err := config.Load(); err != nil {
		return err
	}
	r := router.New()
	routes.Register(r, routes.Handlers{}, routes.Options{CheckoutKey: config.CheckoutKey()})

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "METHOD\tPATH\tNAME")
	for _, rt := range r.Routes(byPath) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.Join(rt.Methods, "|"), rt.Path, rt.Name)
	}
	return w.Flush()
}

// Work runs queue workers without the web server until ctx ends.
func Work(ctx context.Context, workers int) error {
	a, err := Boot(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if workers < 1 {
		workers = 1
	}
	a.Queue.StartWorkers(ctx, workers)
	<-ctx.Done()
	a.Queue.Wait()
	return nil
}
