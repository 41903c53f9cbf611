package main

import (
	"archive/zip"
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/janneta/canvass/config"
	"github.com/janneta/canvass/docstore"
	"github.com/janneta/canvass/localcache"
	"github.com/janneta/canvass/voter"
	"github.com/janneta/canvass/voterroll"
	"github.com/matryer/try"
	"go.uber.org/zap"
)

const (
	maxAttempts = 5 // number of times to retry a write
)

type sheet struct {
	name string
	data []byte
}

type importer struct {
	store    docstore.Store
	cache    *localcache.Cache
	logger   *zap.SugaredLogger
	wait     time.Duration // between write attempts
	progress io.Writer
}

func main() {
	source := flag.String("source", "", "voter roll sheet, csv or zip: a path, file:// or http(s):// URL")
	comma := flag.String("comma", ",", "column separator")
	latin1 := flag.Bool("latin1", false, "sheet is encoded as ISO 8859-1")
	storeCfg := config.StoreFlags(flag.CommandLine)
	flag.Parse()
	if err := config.LoadEnvFile(config.EnvFile); err != nil {
		log.Fatal(err)
	}
	if *source == "" {
		log.Fatal("missing -source")
	}
	if len([]rune(*comma)) != 1 {
		log.Fatal("-comma must be a single character")
	}
	if err := storeCfg.Resolve(); err != nil {
		log.Fatal(err)
	}
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %q", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx := context.Background()
	cache, err := localcache.Open(storeCfg.CachePath)
	if err != nil {
		logger.Fatalf("failed to open local cache: %q", err)
	}
	defer cache.Close()
	store, closeStore, err := docstore.Open(ctx, storeCfg.Options())
	if err != nil {
		logger.Fatalf("failed to open %s store: %q", storeCfg.Driver, err)
	}
	defer closeStore()

	imp := &importer{store: store, cache: cache, logger: logger, wait: time.Second}
	n, err := imp.run(ctx, *source, voterroll.Options{Comma: []rune(*comma)[0], Latin1: *latin1})
	if err != nil {
		logger.Fatalf("failed to import voter roll %s: %q", *source, err)
	}
	logger.Infow("voter roll imported", "source", *source, "voters", n)
}

func (imp *importer) run(ctx context.Context, source string, opts voterroll.Options) (int, error) {
	b, err := fetch(source)
	if err != nil {
		return 0, err
	}
	imp.logger.Infow("voter roll fetched", "source", source, "size", humanize.Bytes(uint64(len(b))))
	sheets, err := sheetsOf(path.Base(source), b)
	if err != nil {
		return 0, err
	}
	var voters []voter.Voter
	for _, s := range sheets {
		rows, err := voterroll.Read(bytes.NewReader(s.data), opts)
		if err != nil {
			return 0, fmt.Errorf("failed to read sheet %s, error %v", s.name, err)
		}
		voters = append(voters, voterroll.RemoveDuplicates(rows, s.name, imp.logger)...)
	}
	if err := imp.save(ctx, voters); err != nil {
		return 0, err
	}
	return len(voters), nil
}

func (imp *importer) save(ctx context.Context, voters []voter.Voter) error {
	bar := pb.New(len(voters))
	if imp.progress != nil {
		bar.SetWriter(imp.progress)
	}
	bar.Start()
	defer bar.Finish()
	for _, v := range voters {
		key := v.Key()
		doc := v.Document()
		err := try.Do(func(attempt int) (bool, error) {
			err := imp.store.Merge(ctx, docstore.VotersCollection, key, doc)
			if err != nil && attempt < maxAttempts {
				time.Sleep(imp.wait)
			}
			return attempt < maxAttempts, err
		})
		if err != nil {
			return fmt.Errorf("failed to save voter [%s], error %v", key, err)
		}
		if err := imp.cache.PutJSON(ctx, localcache.VoterKey(key), doc.Plain()); err != nil {
			return fmt.Errorf("failed to cache voter [%s], error %v", key, err)
		}
		bar.Increment()
	}
	return nil
}

// fetch reads source, a local path or a file:// or http(s):// URL.
func fetch(source string) ([]byte, error) {
	if !strings.Contains(source, "://") {
		b, err := ioutil.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s, error %v", source, err)
		}
		return b, nil
	}
	t := &http.Transport{}
	c := &http.Client{Transport: t}
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
	case strings.HasPrefix(source, "file://"):
		t.RegisterProtocol("file", http.NewFileTransport(http.Dir("/")))
	default:
		return nil, fmt.Errorf("unsupported protocol in %s", source)
	}
	res, err := c.Get(source)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s, error %v", source, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s, status %s", source, res.Status)
	}
	b, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response of %s, error %v", source, err)
	}
	return b, nil
}

// sheetsOf returns the .csv files of a zip archive, or b itself when
// it is not one.
func sheetsOf(name string, b []byte) ([]sheet, error) {
	if !bytes.HasPrefix(b, []byte("PK\x03\x04")) {
		return []sheet{{name: name, data: b}}, nil
	}
	zipReader, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip %s, error %v", name, err)
	}
	var sheets []sheet
	for _, f := range zipReader.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in zip, error %v", f.Name, err)
		}
		data, err := ioutil.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s in zip, error %v", f.Name, err)
		}
		sheets = append(sheets, sheet{name: f.Name, data: data})
	}
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no csv sheet found in %s", name)
	}
	return sheets, nil
}
