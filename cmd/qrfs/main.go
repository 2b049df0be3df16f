package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"
	pz "github.com/weberc2/httpeasy"

	"github.com/weberc2/qrfs/pkg/check"
	"github.com/weberc2/qrfs/pkg/fsys"
	"github.com/weberc2/qrfs/pkg/store"
	"github.com/weberc2/qrfs/pkg/types"
	"github.com/weberc2/qrfs/pkg/upload"
)

func main() {
	app := cli.App{
		Name:        "qrfs",
		Description: "a filesystem that persists every block as a QR image",
		Commands: []*cli.Command{
			mkfsCommand(),
			fsckCommand(),
			mountCommand(),
			extractCommand(),
			serveCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func mkfsCommand() *cli.Command {
	return &cli.Command{
		Name:        "mkfs",
		Description: "format a directory of QR images as a new volume",
		ArgsUsage:   "<dir>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "blocks",
				Usage: "Total number of blocks in the volume.",
				Value: 128,
			},
			&cli.UintFlag{
				Name:  "inodes",
				Usage: "Number of inode table slots.",
				Value: 64,
			},
			&cli.UintFlag{
				Name:  "block-size",
				Usage: "Block size in bytes (128, 256, 512, or 1024).",
				Value: uint(types.DefaultBlockSize),
			},
		},
		Action: func(ctx *cli.Context) error {
			dir := ctx.Args().First()
			if dir == "" {
				return fmt.Errorf("missing required argument: <dir>")
			}
			s, err := store.NewQRStore(
				dir,
				int(ctx.Uint("block-size")),
				types.Block(ctx.Uint("blocks")),
			)
			if err != nil {
				return err
			}
			if err := fsys.Format(s, types.Ino(ctx.Uint("inodes"))); err != nil {
				return err
			}
			log.Printf(
				"formatted `%s`: %d blocks of %d bytes, %d inodes",
				dir,
				ctx.Uint("blocks"),
				ctx.Uint("block-size"),
				ctx.Uint("inodes"),
			)
			return nil
		},
	}
}

func fsckCommand() *cli.Command {
	return &cli.Command{
		Name:        "fsck",
		Description: "check a volume's consistency without mounting it",
		ArgsUsage:   "<dir>",
		Action: func(ctx *cli.Context) error {
			dir := ctx.Args().First()
			if dir == "" {
				return fmt.Errorf("missing required argument: <dir>")
			}
			s, err := openVolume(dir)
			if err != nil {
				return err
			}

			checker := check.Checker{Store: s, Logf: log.Printf}
			report := checker.Run()

			for _, finding := range report.Findings {
				log.Printf("%s: %s", finding.Severity, finding.Message)
			}
			log.Printf("========================================")
			switch {
			case report.Critical():
				log.Printf("result: critical corruption found")
				log.Printf("the volume may be unsafe to mount")
				return cli.Exit("", 2)
			case !report.Clean():
				log.Printf("result: minor warnings found")
				log.Printf("the volume is usable but inconsistent")
			default:
				log.Printf(
					"result: volume `%s` is consistent (%d/%d blocks used, "+
						"%d live inodes)",
					report.VolumeID,
					report.UsedBlocks,
					report.TotalBlocks,
					report.LiveInodes,
				)
			}
			return nil
		},
	}
}

func mountCommand() *cli.Command {
	return &cli.Command{
		Name:        "mount",
		Description: "mount a volume and serve it until unmounted",
		ArgsUsage:   "<dir> <mountpoint>",
		Action: func(ctx *cli.Context) error {
			dir := ctx.Args().Get(0)
			mountpoint := ctx.Args().Get(1)
			if dir == "" || mountpoint == "" {
				return fmt.Errorf(
					"missing required arguments: <dir> <mountpoint>",
				)
			}
			s, err := openVolume(dir)
			if err != nil {
				return err
			}
			fs, err := fsys.Load(s)
			if err != nil {
				return err
			}
			log.Printf(
				"mounting volume `%s` at `%s`",
				fs.Superblock.VolumeID,
				mountpoint,
			)
			return fsys.Serve(fs, mountpoint)
		},
	}
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name: "extract",
		Description: "copy an inode's block images out of a volume, or " +
			"list all inodes if no --ino is given",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.UintFlag{
				Name:  "ino",
				Usage: "The inode to extract. Omit to list inodes instead.",
			},
			&cli.StringFlag{
				Name:  "out",
				Usage: "Directory the block images are copied into.",
			},
		},
		Action: func(ctx *cli.Context) error {
			dir := ctx.Args().First()
			if dir == "" {
				return fmt.Errorf("missing required argument: <dir>")
			}
			s, err := openVolume(dir)
			if err != nil {
				return err
			}
			fs, err := fsys.Load(s)
			if err != nil {
				return err
			}

			if !ctx.IsSet("ino") {
				return listInodes(fs)
			}
			out := ctx.String("out")
			if out == "" {
				return fmt.Errorf("missing required flag: --out")
			}
			return extractInode(fs, s, types.Ino(ctx.Uint("ino")), out)
		},
	}
}

func listInodes(fs *fsys.FileSystem) error {
	for i := types.Ino(0); i < fs.Superblock.InodeCount; i++ {
		inode, live := fs.Inodes[i]
		if !live {
			continue
		}
		if _, err := fmt.Printf(
			"inode %d: %s (%d blocks, %d bytes)\n",
			inode.Ino,
			inode.Kind,
			len(inode.Blocks),
			inode.Size,
		); err != nil {
			return err
		}
	}
	return nil
}

func extractInode(
	fs *fsys.FileSystem,
	s *store.QRStore,
	ino types.Ino,
	out string,
) error {
	inode, err := fs.Getattr(ino)
	if err != nil {
		return err
	}
	if len(inode.Blocks) == 0 {
		log.Printf("inode `%d` has no allocated blocks; nothing to extract", ino)
		return nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	for i, block := range inode.Blocks {
		png, err := os.ReadFile(s.BlockPath(block))
		if err != nil {
			return fmt.Errorf("reading block `%d` image: %w", block, err)
		}
		target := filepath.Join(out, fmt.Sprintf("block_%04d.png", i))
		if err := os.WriteFile(target, png, 0o644); err != nil {
			return fmt.Errorf("writing `%s`: %w", target, err)
		}
	}
	log.Printf(
		"extracted %d block image(s) from inode `%d` into `%s`",
		len(inode.Blocks),
		ino,
		out,
	)
	return nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name: "serve",
		Description: "run the HTTP upload companion against a volume " +
			"directory",
		ArgsUsage: "<dir>",
		Action: func(ctx *cli.Context) error {
			dir := ctx.Args().First()
			if dir == "" {
				return fmt.Errorf("missing required argument: <dir>")
			}
			config, err := LoadConfig()
			if err != nil {
				return err
			}
			s, err := store.NewQRStore(
				dir,
				int(config.BlockSize),
				config.Blocks,
			)
			if err != nil {
				return err
			}
			service := upload.NewService(s)
			log.Printf("upload companion listening on %s", config.Addr)
			return http.ListenAndServe(config.Addr, pz.Register(
				pz.JSONLog(os.Stderr),
				service.Routes()...,
			))
		},
	}
}

// openVolume reads a volume's geometry out of its own superblock: block 0 is
// decoded through a probe store wide enough for any legal block size, and
// the real store is rebuilt with the parameters the superblock declares.
func openVolume(dir string) (*store.QRStore, error) {
	probe, err := store.NewQRStore(dir, types.MaxBlockSize, 1)
	if err != nil {
		return nil, err
	}
	p, err := probe.ReadBlock(0)
	if err != nil {
		return nil, fmt.Errorf("probing volume `%s`: %w", dir, err)
	}
	var sb types.Superblock
	if err := types.DecodeSuperblock(&sb, p); err != nil {
		return nil, fmt.Errorf("probing volume `%s`: %w", dir, err)
	}
	return store.NewQRStore(dir, int(sb.BlockSize), sb.TotalBlocks)
}
