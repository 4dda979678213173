package backend

import (
	"go/parser"
	"go/token"
	"testing"
)

func TestPackageSourcesParse(t *testing.T) {
	fset := token.NewFileSet()
	pkgs, err := parser.ParseDir(fset, ".", nil, parser.ParseComments)
	if err != nil {
		t.Fatalf("ParseDir() error = %v", err)
	}
	pkg, ok := pkgs["backend"]
	if !ok {
		t.Fatal("package backend not found")
	}
	if _, ok := pkg.Files["doc.go"]; !ok {
		t.Error("doc.go not parsed")
	}
}
