package langa

// Scope is a variable environment frame. The root Scope's Vars map is the
// sandbox object itself: assignments made at top level land directly in
// it, which is exactly what a with(sandbox)-scope trick would achieve.
type Scope struct {
	Vars   map[string]Value
	Parent *Scope
}

func newRootScope(sandbox map[string]Value) *Scope {
	return &Scope{Vars: sandbox}
}

func newChildScope(parent *Scope) *Scope {
	return &Scope{Vars: map[string]Value{}, Parent: parent}
}

// Define creates or overwrites a binding in this scope (used for var
// declarations and function parameters, both function-scoped in Lang-A
// after the instrumenter's declaration-kind rewrite).
func (s *Scope) Define(name string, v Value) {
	s.Vars[name] = v
}

// Get resolves name by walking the scope chain outward.
func (s *Scope) Get(name string) (Value, bool) {
	for sc := s; sc != nil; sc = sc.Parent {
		if v, ok := sc.Vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set assigns to the nearest scope in the chain that already declares name;
// if none does, it defines name in the innermost (calling) scope, matching
// Lang-A's permissive treatment of implicit globals.
func (s *Scope) Set(name string, v Value) {
	for sc := s; sc != nil; sc = sc.Parent {
		if _, ok := sc.Vars[name]; ok {
			sc.Vars[name] = v
			return
		}
	}
	s.Vars[name] = v
}
