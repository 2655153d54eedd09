package jit

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/xyproto/exprjit/codegen"
	"github.com/xyproto/exprjit/internal/logging"
	"github.com/xyproto/exprjit/ir"
)

// Linkage says where a declared function's code comes from
type Linkage int

const (
	// LinkageImport functions live outside the module and are bound by Symbol
	LinkageImport Linkage = iota
	// LinkageLocal functions are defined in the module
	LinkageLocal
)

func (l Linkage) String() string {
	if l == LinkageImport {
		return "import"
	}
	return "local"
}

// FuncID identifies a function declared in a Module
type FuncID int

type decl struct {
	name    string
	linkage Linkage
	sig     ir.Signature
	code    []byte
	lines   []codegen.Line
	page    *codePage
	mapped  bool
}

// Module links functions for one backend: a symbol table of native
// addresses for imports, and the code of the functions it defines. A
// Module is used by one goroutine.
type Module struct {
	backend codegen.Backend
	symbols map[string]uintptr
	decls   []*decl
	byName  map[string]FuncID
}

// NewModule returns an empty module assembling with be
func NewModule(be codegen.Backend) *Module {
	return &Module{
		backend: be,
		symbols: make(map[string]uintptr),
		byName:  make(map[string]FuncID),
	}
}

// Backend returns the backend the module assembles with
func (m *Module) Backend() codegen.Backend {
	return m.backend
}

// Symbol binds name to a native address. Bindings must be made before the
// name is declared as an import.
func (m *Module) Symbol(name string, addr uintptr) {
	m.symbols[name] = addr
}

// DeclareFunction declares name, or returns the existing declaration if it
// has the same linkage and signature
func (m *Module) DeclareFunction(name string, linkage Linkage, sig ir.Signature) (FuncID, error) {
	if id, ok := m.byName[name]; ok {
		d := m.decls[id]
		if d.linkage != linkage || !d.sig.Equal(sig) {
			return 0, compileErr(KindDeclaration, name,
				errors.Errorf("declared as %s %s, redeclared as %s %s", d.linkage, d.sig, linkage, sig))
		}
		return id, nil
	}
	if linkage == LinkageImport {
		if _, ok := m.symbols[name]; !ok {
			return 0, compileErr(KindUnresolvedSymbol, name, errors.New("no symbol bound for import"))
		}
	}
	m.decls = append(m.decls, &decl{name: name, linkage: linkage, sig: sig})
	id := FuncID(len(m.decls) - 1)
	m.byName[name] = id
	return id, nil
}

// DeclareFuncInFunc makes the function id callable from fn
func (m *Module) DeclareFuncInFunc(id FuncID, fn *ir.Func) (ir.FuncRef, error) {
	if int(id) >= len(m.decls) {
		return 0, compileErr(KindUnresolvedSymbol, "", errors.Errorf("function %d is not declared", id))
	}
	d := m.decls[id]
	return fn.ImportFunction(ir.ExtFunc{Name: d.name, Sig: d.sig}), nil
}

// importAddrs resolves the imports of fn in FuncRef order
func (m *Module) importAddrs(fn *ir.Func) ([]uintptr, error) {
	addrs := make([]uintptr, 0, len(fn.Imports()))
	for _, ext := range fn.Imports() {
		addr, ok := m.symbols[ext.Name]
		if !ok {
			return nil, compileErr(KindUnresolvedSymbol, ext.Name, errors.New("no symbol bound for call"))
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// DefineFunction verifies fn and assembles it as the body of id
func (m *Module) DefineFunction(id FuncID, fn *ir.Func) error {
	if int(id) >= len(m.decls) {
		return compileErr(KindDeclaration, fn.Name, errors.Errorf("function %d is not declared", id))
	}
	d := m.decls[id]
	if d.linkage != LinkageLocal {
		return compileErr(KindDeclaration, d.name, errors.New("cannot define an imported function"))
	}
	if d.code != nil {
		return compileErr(KindDeclaration, d.name, errors.New("defined twice"))
	}
	if !d.sig.Equal(fn.Sig) {
		return compileErr(KindDeclaration, d.name, errors.Errorf("declared as %s, defined as %s", d.sig, fn.Sig))
	}
	if err := ir.Verify(fn); err != nil {
		return compileErr(KindVerify, d.name, err)
	}
	addrs, err := m.importAddrs(fn)
	if err != nil {
		return err
	}
	lines, err := m.backend.Listing(fn, addrs)
	if err != nil {
		kind := KindAssemble
		if errors.Is(err, codegen.ErrUnsupported) {
			kind = KindUnsupported
		}
		return compileErr(kind, d.name, err)
	}
	var code []byte
	for _, l := range lines {
		code = append(code, l.Bytes...)
	}
	d.code, d.lines = code, lines
	logging.L().Debugf("assembled %s for %s: %s", d.name, m.backend.Arch(), humanize.Bytes(uint64(len(code))))
	return nil
}

// Code returns the machine code and listing of a defined function
func (m *Module) Code(id FuncID) ([]byte, []codegen.Line, bool) {
	if int(id) >= len(m.decls) || m.decls[id].code == nil {
		return nil, nil, false
	}
	d := m.decls[id]
	return d.code, d.lines, true
}

// FinalizeDefinitions copies every defined function into executable memory
func (m *Module) FinalizeDefinitions() error {
	for i, d := range m.decls {
		if d.code == nil || d.mapped {
			continue
		}
		page, err := allocCodePage(d.code)
		if err != nil {
			for _, done := range m.decls[:i] {
				if done.page != nil {
					_ = done.page.free()
					done.page, done.mapped = nil, false
				}
			}
			kind := KindMemory
			if errors.Is(err, errUnsupportedOS) {
				kind = KindUnsupported
			}
			return compileErr(kind, d.name, err)
		}
		d.page, d.mapped = page, true
		logging.L().Debugf("mapped %s at %#x (%s)", d.name, page.addr(), humanize.Bytes(uint64(page.size())))
	}
	return nil
}

// FinalizedFunction returns the entry address of a finalized function
func (m *Module) FinalizedFunction(id FuncID) (uintptr, error) {
	if int(id) >= len(m.decls) || m.decls[id].page == nil {
		return 0, compileErr(KindMemory, "", errors.Errorf("function %d is not finalized", id))
	}
	return m.decls[id].page.addr(), nil
}

// takePage hands the executable memory of id to the caller, who becomes
// responsible for freeing it
func (m *Module) takePage(id FuncID) (*codePage, error) {
	if int(id) >= len(m.decls) || m.decls[id].page == nil {
		return nil, compileErr(KindMemory, "", errors.Errorf("function %d is not finalized", id))
	}
	d := m.decls[id]
	page := d.page
	d.page = nil
	return page, nil
}

// Free releases memory that was finalized but never handed out
func (m *Module) Free() {
	for _, d := range m.decls {
		if d.page != nil {
			_ = d.page.free()
			d.page = nil
		}
	}
}
