package main

import (
	"fmt"
	"os"

	"github.com/Fl0k3n/kload/loader"
	"github.com/Fl0k3n/kload/memory"
	"github.com/Fl0k3n/kload/utils"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"gopkg.in/alecthomas/kingpin.v2"
)

// kload loads an executable image into a simulated address space and prints
// the resulting link map, mirroring what the kernel-side loader would hand to
// process management.

var (
	imagePath  = kingpin.Arg("image", "Executable image to load.").Required().String()
	libDirs    = kingpin.Flag("lib-dir", "Library search directory, repeatable; defaults to KLOAD_LIBRARY_PATH.").Short('L').Strings()
	pageBudget = kingpin.Flag("page-budget", "Simulated physical page budget, 0 for unlimited.").Default("0").Uint64()
	verbose    = kingpin.Flag("verbose", "Enable debug logging.").Short('v').Bool()
)

// dedupDirs drops repeated -L directories, keeping first occurrence order.
func dedupDirs(dirs []string) []string {
	seen := utils.NewSet[string]()
	res := []string{}
	for _, dir := range dirs {
		if seen.Has(dir) {
			continue
		}
		seen.Add(dir)
		res = append(res, dir)
	}
	return res
}

type printingInvoker struct{}

func (printingInvoker) Invoke(addr uint64) error {
	fmt.Printf("init call -> 0x%x\n", addr)
	return nil
}

func main() {
	kingpin.Parse()

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	if *verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowInfo())
	}

	fs := afero.NewOsFs()
	image, err := afero.ReadFile(fs, *imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading %s: %v\n", *imagePath, err)
		os.Exit(1)
	}

	searchDirs := dedupDirs(*libDirs)
	if len(searchDirs) == 0 {
		searchDirs = loader.DefaultSearchDirs()
	}
	mapper := memory.NewSimMapper()
	ldr := loader.New(loader.Config{
		Allocator:  memory.NewSimAllocator(*pageBudget),
		Mapper:     mapper,
		Fs:         fs,
		SearchDirs: searchDirs,
		Logger:     logger,
		Invoker:    printingInvoker{},
	})

	proc, err := ldr.LoadExecutable(image)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load failed (%s): %v\n", loader.KindOf(err), err)
		os.Exit(1)
	}

	fmt.Printf("entrypoint: 0x%x\n", proc.EntryPoint)
	fmt.Printf("stack top:  0x%x\n", proc.StackTop)
	fmt.Println("link map:")
	for _, obj := range proc.Objects {
		name := obj.Name
		if name == "" {
			name = *imagePath
		}
		fmt.Printf("  0x%016x %s (digest %016x)\n", obj.Base, name, obj.Digest)
		for _, dep := range obj.Deps {
			fmt.Printf("    needs %s\n", dep.Name)
		}
	}
	fmt.Println("mappings:")
	for _, mapping := range mapper.Mappings() {
		fmt.Printf("  0x%016x -> 0x%x (%d pages, perms 0x%x)\n",
			mapping.Vaddr, mapping.Phys.Base, mapping.Phys.PageCount, mapping.Perms)
	}
}
