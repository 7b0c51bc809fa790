// Command au decodes, searches, converts, and tails au streams.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/jpl-au/au"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "au: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func usage() {
	fmt.Fprint(os.Stderr, `usage: au <command> [options] [args]

commands:
  decode [path]                decode an au stream to JSON lines
  grep [options] <pattern> [path]...
                               print records containing pattern
  tail [-f] [-b bytes] <path>  decode the end of a stream
  enc [-m meta] [-o out] [path]
                               encode JSON lines as an au stream

"-" or no path reads standard input. decode and grep accept gzip- or
zstd-compressed input; enc reads plain JSON; tail requires a plain file.
`)
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return errUsage
	}
	switch args[0] {
	case "decode":
		return runDecode(args[1:])
	case "grep":
		return runGrep(args[1:])
	case "tail":
		return runTail(args[1:])
	case "enc":
		return runEnc(args[1:])
	case "help", "-h", "--help":
		usage()
		return nil
	}
	usage()
	return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
}

func runDecode(args []string) error {
	fs := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := "-"
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}

	src, err := au.OpenSource(path, au.SourceOptions{})
	if err != nil {
		return err
	}
	defer src.Close()

	out := bufio.NewWriter(os.Stdout)
	d := au.NewDecoder(src)
	if err := d.Decode(au.NewJSONHandler(out, d)); err != nil {
		out.Flush()
		return err
	}
	return out.Flush()
}

func runGrep(args []string) error {
	fs := pflag.NewFlagSet("grep", pflag.ContinueOnError)
	var opts au.GrepOptions
	var context int
	fs.StringVarP(&opts.Key, "key", "k", "", "match only in object values with this key")
	fs.BoolVarP(&opts.MatchInt, "integer", "i", false, "match integer values")
	fs.BoolVarP(&opts.MatchDouble, "double", "d", false, "match double values")
	fs.BoolVarP(&opts.MatchTime, "timestamp", "t", false, "match timestamps by prefix")
	fs.BoolVarP(&opts.MatchAtom, "atom", "a", false, "match true, false or null")
	fs.BoolVarP(&opts.MatchString, "string", "s", false, "match string values")
	fs.BoolVarP(&opts.MatchSubstring, "substring", "u", false, "match as substring of string values")
	fs.IntVarP(&opts.Matches, "matches", "m", 0, "show only the first n matching records")
	fs.IntVarP(&opts.Before, "before", "B", 0, "records of context before each match")
	fs.IntVarP(&opts.After, "after", "A", 0, "records of context after each match")
	fs.IntVarP(&context, "context", "C", 0, "records of context around each match")
	fs.BoolVarP(&opts.Count, "count", "c", false, "print count of matching records per file")
	fs.BoolVarP(&opts.Encode, "encode", "e", false, "output au records rather than JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("%w: grep needs a pattern", errUsage)
	}
	opts.Pattern = fs.Arg(0)
	if context > 0 {
		opts.Before, opts.After = context, context
	}

	paths := fs.Args()[1:]
	if len(paths) == 0 {
		paths = []string{"-"}
	}

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for _, path := range paths {
		n, err := au.Grep(path, opts, out)
		if err != nil {
			return err
		}
		if opts.Count {
			if len(paths) > 1 {
				fmt.Fprintf(out, "%s:%d\n", path, n)
			} else {
				fmt.Fprintf(out, "%d\n", n)
			}
		}
	}
	return nil
}

func runTail(args []string) error {
	fs := pflag.NewFlagSet("tail", pflag.ContinueOnError)
	follow := fs.BoolP("follow", "f", false, "keep reading as the file grows")
	window := fs.Int64P("bytes", "b", au.DefaultTailBytes, "scan window before end of file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: tail needs a file", errUsage)
	}

	d, err := au.OpenTail(fs.Arg(0), au.TailOptions{Bytes: *window, Follow: *follow})
	if errors.Is(err, au.ErrNoSync) {
		return fmt.Errorf("no valid value record in the last %d bytes; try a larger -b", *window)
	}
	if err != nil {
		return err
	}
	defer d.Source().Close()

	// Stdout stays unbuffered on purpose: a followed tail must surface
	// each record as it lands, and the renderer writes one line per
	// record.
	return d.Decode(au.NewJSONHandler(os.Stdout, d))
}

func runEnc(args []string) error {
	fs := pflag.NewFlagSet("enc", pflag.ContinueOnError)
	meta := fs.StringP("metadata", "m", "", "header metadata string")
	outPath := fs.StringP("output", "o", "-", "output file")
	syncWrites := fs.Bool("sync", false, "fsync after every record")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if fs.NArg() > 0 && fs.Arg(0) != "-" {
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	var sink io.Writer = os.Stdout
	if *outPath != "-" {
		o, err := au.CreateOutput(*outPath, *syncWrites)
		if err != nil {
			return err
		}
		defer o.Close()
		sink = o
	}

	enc := au.NewEncoder(sink, au.EncoderOptions{Metadata: *meta})
	_, err := au.EncodeJSON(bufio.NewReader(in), enc)
	return err
}
