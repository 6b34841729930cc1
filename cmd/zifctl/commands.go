package main

import (
	"context"
	"fmt"
	"os"

	"github.com/zifproj/zif"
	"github.com/zifproj/zif/progress"
	"github.com/zifproj/zif/rpmpkg"
)

func one(args []string, what string) (string, error) {
	if len(args) != 1 {
		return "", &zif.Error{Op: "zifctl", Kind: zif.ErrNoData,
			Message: "expected exactly one argument: " + what}
	}
	return args[0], nil
}

func printPackages(pkgs []*rpmpkg.Package) {
	for _, p := range pkgs {
		fmt.Printf("%s\t%s\n", p.Identity(), p.Summary)
	}
}

func cmdResolve(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a package name")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.Resolve(ctx, []string{name}, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdSearchName(ctx context.Context, e *engine, args []string) error {
	pat, err := one(args, "a search pattern")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.SearchName(ctx, []string{pat}, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdSearchDetails(ctx context.Context, e *engine, args []string) error {
	pat, err := one(args, "a search pattern")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.SearchDetails(ctx, []string{pat}, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdSearchFile(ctx context.Context, e *engine, args []string) error {
	pat, err := one(args, "a file path")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.SearchFile(ctx, []string{pat}, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdSearchGroup(ctx context.Context, e *engine, args []string) error {
	group, err := one(args, "a group")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.SearchGroup(ctx, group, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdWhatProvides(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a capability or file path")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.WhatProvides(ctx, []rpmpkg.Depend{{Name: name}}, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdGetDepends(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a package name")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.Resolve(ctx, []string{name}, progress.New(ctx))
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return &zif.Error{Op: "zifctl.getdepends", Kind: zif.ErrFailedToFind, Message: name}
	}
	for _, d := range pkgs[0].Requires {
		fmt.Println(d)
	}
	return nil
}

func cmdGetPackages(ctx context.Context, e *engine, args []string) error {
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.GetPackages(ctx, progress.New(ctx))
	if err != nil {
		return err
	}
	printPackages(pkgs)
	return nil
}

func cmdGetFiles(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a package name")
	if err != nil {
		return err
	}
	// Prefer the installed file list; fall back to remote filelists
	// metadata.
	if pkgs, err := e.local.Resolve(ctx, []string{name}); err == nil && len(pkgs) > 0 {
		for _, f := range pkgs[0].Files {
			fmt.Println(f)
		}
		return nil
	}
	stores, err := e.repos.GetStoresEnabled(ctx)
	if err != nil {
		return err
	}
	for _, s := range stores {
		pkgs, err := s.Resolve(ctx, []string{name})
		if err != nil || len(pkgs) == 0 {
			continue
		}
		files, err := s.GetFiles(ctx, pkgs[0])
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}
	return &zif.Error{Op: "zifctl.getfiles", Kind: zif.ErrFailedToFind, Message: name}
}

func cmdGetDetails(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a package name")
	if err != nil {
		return err
	}
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	pkgs, err := a.Resolve(ctx, []string{name}, progress.New(ctx))
	if err != nil {
		return err
	}
	if len(pkgs) == 0 {
		return &zif.Error{Op: "zifctl.getdetails", Kind: zif.ErrFailedToFind, Message: name}
	}
	p := pkgs[0]
	fmt.Printf("package:     %s\n", p.Identity())
	fmt.Printf("summary:     %s\n", p.Summary)
	fmt.Printf("description: %s\n", p.Description)
	fmt.Printf("license:     %s\n", p.License)
	fmt.Printf("url:         %s\n", p.URL)
	fmt.Printf("size:        %d\n", p.Size)
	return nil
}

func cmdRepoList(ctx context.Context, e *engine, args []string) error {
	stores, err := e.repos.GetStores(ctx)
	if err != nil {
		return err
	}
	for _, s := range stores {
		state := "disabled"
		if s.Enabled() {
			state = "enabled"
		}
		fmt.Printf("%s\t%s\t%s\n", s.ID(), state, s.DisplayName())
	}
	return nil
}

func cmdClean(ctx context.Context, e *engine, args []string) error {
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	return a.Clean(ctx)
}

func cmdDownload(ctx context.Context, e *engine, args []string) error {
	name, err := one(args, "a package name")
	if err != nil {
		return err
	}
	stores, err := e.repos.GetStoresEnabled(ctx)
	if err != nil {
		return err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	for _, s := range stores {
		pkgs, err := s.Resolve(ctx, []string{name})
		if err != nil || len(pkgs) == 0 {
			continue
		}
		dst, err := s.DownloadFull(ctx, pkgs[0].LocationHref, cwd)
		if err != nil {
			return err
		}
		fmt.Println(dst)
		return nil
	}
	return &zif.Error{Op: "zifctl.download", Kind: zif.ErrFailedToFind, Message: name}
}

func cmdGetUpdates(ctx context.Context, e *engine, args []string) error {
	a, err := e.array(ctx)
	if err != nil {
		return err
	}
	updates, err := a.GetUpdates(ctx, e.local, progress.New(ctx))
	if err != nil {
		return err
	}
	for _, p := range updates {
		line := p.Identity()
		if p.InstalledVersion != nil {
			line += "\t(installed: " + p.InstalledVersion.EVR() + ")"
		}
		fmt.Println(line)
	}
	return nil
}
