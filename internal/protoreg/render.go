package protoreg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/jhump/protoreflect/v2/protoprint"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
)

// Render writes a .proto source for every file in files under outDir.
// Well-known google/protobuf files are skipped.
func Render(files *protoregistry.Files, outDir string) error {
	pp := protoprint.Printer{}

	var err error
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		if strings.HasPrefix(fd.Path(), "google/protobuf/") {
			return true
		}
		err = renderFile(&pp, fd, filepath.Join(outDir, filepath.FromSlash(fd.Path())))
		return err == nil
	})
	return err
}

func renderFile(pp *protoprint.Printer, fd protoreflect.FileDescriptor, fp string) error {
	if err := os.MkdirAll(filepath.Dir(fp), 0755); err != nil {
		return err
	}
	openedFile, err := os.OpenFile(fp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if err := pp.PrintProtoFile(fd, openedFile); err != nil {
		openedFile.Close()
		return err
	}
	return openedFile.Close()
}
