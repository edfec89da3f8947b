package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/dittofiles/pkg/engine"
	"github.com/marmos91/dittofiles/pkg/metadata"
	"github.com/marmos91/dittofiles/pkg/txn"
)

// exactArgs parses the command's flags and checks the positional count.
func (e *env) exactArgs(args []string, n int) ([]string, error) {
	if err := e.flags.Parse(args); err != nil {
		return nil, err
	}
	if e.flags.NArg() != n {
		return nil, fmt.Errorf("%s: expected %d argument(s), got %d", e.flags.Name(), n, e.flags.NArg())
	}
	return e.flags.Args(), nil
}

func printRecord(rec *metadata.FileRecord) {
	kind := "file"
	if rec.IsFolder {
		kind = "folder"
	}
	fmt.Printf("%s\t%s\t%s\t%s\n", rec.ID, kind, rec.FileName, rec.FileURL)
}

func runPut(ctx context.Context, e *env, args []string) error {
	name := e.flags.String("name", "", "Stored file name (default: base name of the source)")
	private := e.flags.Bool("private", false, "Store in the private partition")
	folder := e.flags.String("folder", "", "Target folder (default: Home)")
	attach := e.flags.String("attach", "", "Owner document as doctype/name[/field]")
	url := e.flags.String("url", "", "Reference a remote or existing local URL instead of a file")

	if err := e.flags.Parse(args); err != nil {
		return err
	}

	req := engine.CreateRequest{
		FileName:  *name,
		FileURL:   *url,
		IsPrivate: *private,
		Folder:    *folder,
	}

	if *url == "" {
		if e.flags.NArg() != 1 {
			return fmt.Errorf("put: expected a source file or --url")
		}
		src := e.flags.Arg(0)
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		req.Content = data
		if req.FileName == "" {
			req.FileName = filepath.Base(src)
		}
	}

	if *attach != "" {
		parts := strings.SplitN(*attach, "/", 3)
		if len(parts) < 2 {
			return fmt.Errorf("put: --attach must be doctype/name[/field]")
		}
		req.AttachedTo = &metadata.Attachment{Doctype: parts[0], Name: parts[1]}
		if len(parts) == 3 {
			req.AttachedTo.Field = parts[2]
		}
	}

	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.Create(ctx, tx, e.actor, req)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	})
}

func runCat(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 1)
	if err != nil {
		return err
	}
	data, err := e.rt.Engine.GetContent(ctx, nil, e.actor, pos[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func runList(ctx context.Context, e *env, args []string) error {
	if err := e.flags.Parse(args); err != nil {
		return err
	}
	folder := metadata.HomeFolder
	if e.flags.NArg() > 0 {
		folder = e.flags.Arg(0)
	}

	children, err := e.rt.Engine.List(ctx, nil, e.actor, folder)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tPRIVATE\tURL")
	for _, rec := range children {
		size := "-"
		if !rec.IsFolder {
			size = humanize.Bytes(uint64(rec.Size))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\n", rec.ID, rec.FileName, size, rec.IsPrivate, rec.FileURL)
	}
	return w.Flush()
}

func runMkdir(ctx context.Context, e *env, args []string) error {
	if err := e.flags.Parse(args); err != nil {
		return err
	}
	if e.flags.NArg() < 1 || e.flags.NArg() > 2 {
		return fmt.Errorf("mkdir: expected <name> [parent]")
	}
	parent := metadata.HomeFolder
	if e.flags.NArg() == 2 {
		parent = e.flags.Arg(1)
	}

	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.CreateFolder(ctx, tx, e.actor, e.flags.Arg(0), parent)
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	})
}

func runMove(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 2)
	if err != nil {
		return err
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.Move(ctx, tx, e.actor, pos[0], pos[1])
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	})
}

func runRename(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 2)
	if err != nil {
		return err
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.Rename(ctx, tx, e.actor, pos[0], pos[1])
		if err != nil {
			return err
		}
		printRecord(rec)
		return nil
	})
}

func runDelete(ctx context.Context, e *env, args []string) error {
	if err := e.flags.Parse(args); err != nil {
		return err
	}
	if e.flags.NArg() == 0 {
		return fmt.Errorf("rm: expected at least one id")
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		for _, id := range e.flags.Args() {
			if err := e.rt.Engine.Delete(ctx, tx, e.actor, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func runPrivacy(isPrivate bool) func(context.Context, *env, []string) error {
	return func(ctx context.Context, e *env, args []string) error {
		pos, err := e.exactArgs(args, 1)
		if err != nil {
			return err
		}
		return txn.Run(ctx, func(tx *txn.Tx) error {
			rec, err := e.rt.Engine.SetPrivate(ctx, tx, e.actor, pos[0], isPrivate)
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		})
	}
}

func runZip(ctx context.Context, e *env, args []string) error {
	if err := e.flags.Parse(args); err != nil {
		return err
	}
	if e.flags.NArg() < 2 {
		return fmt.Errorf("zip: expected <out.zip> <id>...")
	}

	dl, err := e.rt.Engine.Zip(ctx, nil, e.actor, e.flags.Args()[1:])
	if err != nil {
		return err
	}
	out := e.flags.Arg(0)
	if err := os.WriteFile(out, dl.Data, 0644); err != nil {
		return err
	}
	fmt.Printf("%s: %s (%s)\n", out, humanize.Bytes(uint64(len(dl.Data))), dl.ContentType)
	return nil
}

func runUnzip(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 1)
	if err != nil {
		return err
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		recs, err := e.rt.Engine.Unzip(ctx, tx, e.actor, pos[0])
		if err != nil {
			return err
		}
		for _, rec := range recs {
			printRecord(rec)
		}
		return nil
	})
}

func runThumbnail(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 1)
	if err != nil {
		return err
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.MakeThumbnail(ctx, tx, e.actor, pos[0])
		if err != nil {
			return err
		}
		fmt.Println(rec.ThumbnailURL)
		return nil
	})
}

func runOptimize(ctx context.Context, e *env, args []string) error {
	pos, err := e.exactArgs(args, 1)
	if err != nil {
		return err
	}
	return txn.Run(ctx, func(tx *txn.Tx) error {
		rec, err := e.rt.Engine.OptimizeImage(ctx, tx, e.actor, pos[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%s\n", rec.FileURL, humanize.Bytes(uint64(rec.Size)))
		return nil
	})
}
