package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/Velocidex/ordereddict"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/structwire/structwire/catalog"
	"github.com/structwire/structwire/errors"
	"github.com/structwire/structwire/schema"
	"github.com/structwire/structwire/transfer"
)

func main() {
	var (
		catalogFile = flag.String("catalog", "", "Path to schema catalog file")
		typeName    = flag.String("type", "", "Catalog type to decode records as")
		inFile      = flag.String("in", "", "Binary input file")
		asJSON      = flag.Bool("json", false, "Force JSON output (one object per record)")
		asHuman     = flag.Bool("human", false, "Force human-readable output")
		residual    = flag.Bool("residual", false, "Include undecoded trailing bytes in dumps")
		list        = flag.Bool("list", false, "List catalog types and exit")
		verbose     = flag.Bool("v", false, "Verbose engine logging to stderr")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *catalogFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: bindump -catalog <file.yaml> -type <name> -in <file.bin>")
		fmt.Fprintln(os.Stderr, "       bindump -catalog <file.yaml> -list")
		fmt.Fprintln(os.Stderr, "       bindump -catalog <file.yaml> -type <name> -in <file.bin> -i  (interactive mode)")
		os.Exit(1)
	}

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err == nil {
			schema.SetLogger(logger.Named("schema"))
			catalog.SetLogger(logger.Named("catalog"))
			transfer.SetLogger(logger.Named("transfer"))
		}
	}

	if *interactive {
		if err := runInteractive(*catalogFile, *typeName, *inFile, *residual); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*catalogFile, *typeName, *inFile, *asJSON, *asHuman, *residual, *list); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// recordType is the slice of catalog types bindump can decode against:
// anything that parses a stream prefix and dumps to an ordered map.
type recordType interface {
	schema.Type
	Parse(data []byte) (*schema.Struct, int, error)
	Dump(v *schema.Struct, opts ...schema.DumpOptions) *ordereddict.Dict
}

func run(catalogFile, typeName, inFile string, asJSON, asHuman, residual, listOnly bool) error {
	cat, err := catalog.Load(catalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	if listOnly {
		for _, name := range cat.Names() {
			t, _ := cat.Type(name)
			fmt.Printf("  %s  %s\n", name, t)
		}
		return nil
	}

	rt, err := resolveRecordType(cat, typeName)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(inFile)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	// Human output on a terminal, JSON when piped, unless forced.
	human := asHuman || (!asJSON && term.IsTerminal(int(os.Stdout.Fd())))

	records, parseErr := parseAll(rt, data)
	for i, rec := range records {
		d := rt.Dump(rec.value, schema.DumpOptions{
			ToString:        true,
			IncludeResidual: residual,
			TypeTag:         schema.TypeTagKey,
		})
		if human {
			fmt.Printf("record %d  offset 0x%x  %d bytes\n", i, rec.offset, rec.size)
			fmt.Print(renderDict(d, 1))
		} else {
			line, err := json.Marshal(d)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			fmt.Println(string(line))
		}
	}
	if parseErr != nil {
		return parseErr
	}
	return nil
}

func resolveRecordType(cat *catalog.Catalog, name string) (recordType, error) {
	if name == "" {
		return nil, fmt.Errorf("no type specified; use -type (or -list to see the catalog)")
	}
	t, ok := cat.Type(name)
	if !ok {
		return nil, fmt.Errorf("type %q is not in the catalog", name)
	}
	rt, ok := t.(recordType)
	if !ok {
		return nil, fmt.Errorf("type %q (%s) is not a record type", name, t)
	}
	return rt, nil
}

// parsedRecord is one decoded record plus its position in the input.
type parsedRecord struct {
	value  *schema.Struct
	offset int
	size   int
}

// parseAll decodes consecutive records until the input runs out. Records
// decoded before a failure are returned along with the error, so a
// truncated capture still dumps its intact prefix.
func parseAll(rt recordType, data []byte) ([]parsedRecord, error) {
	var records []parsedRecord
	offset := 0
	for offset < len(data) {
		v, n, err := rt.Parse(data[offset:])
		if err != nil {
			if errors.IsNeedMore(err) {
				return records, fmt.Errorf("record %d at offset 0x%x is truncated (%d bytes left)",
					len(records), offset, len(data)-offset)
			}
			return records, fmt.Errorf("record %d at offset 0x%x: %w", len(records), offset, err)
		}
		if n == 0 {
			return records, fmt.Errorf("parser consumed nothing at offset 0x%x", offset)
		}
		records = append(records, parsedRecord{value: v, offset: offset, size: n})
		offset += n
	}
	return records, nil
}

// renderDict prints an ordered dump as indented key/value lines.
func renderDict(d *ordereddict.Dict, depth int) string {
	var b strings.Builder
	indent := strings.Repeat("  ", depth)
	for _, key := range d.Keys() {
		v, _ := d.Get(key)
		switch val := v.(type) {
		case *ordereddict.Dict:
			fmt.Fprintf(&b, "%s%s:\n", indent, key)
			b.WriteString(renderDict(val, depth+1))
		case []any:
			fmt.Fprintf(&b, "%s%s: %s\n", indent, key, renderList(val, depth))
		case []byte:
			fmt.Fprintf(&b, "%s%s: % x\n", indent, key, val)
		default:
			fmt.Fprintf(&b, "%s%s: %v\n", indent, key, val)
		}
	}
	return b.String()
}

func renderList(items []any, depth int) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if d, ok := it.(*ordereddict.Dict); ok {
			parts = append(parts, "\n"+renderDict(d, depth+1))
			continue
		}
		parts = append(parts, fmt.Sprintf("%v", it))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
