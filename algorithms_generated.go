package phlex

// This file is the typed arity ladder for every algorithm kind: a free
// generic function per input count, package-level and taking the Proxy
// explicitly, since Go methods cannot themselves carry type parameters.
// Transforms go up to four inputs, everything else to three — the
// arities a real pipeline DAG needs. Hand-written rather than
// go:generate'd since the shape per arity is uniform enough not to
// warrant a generator.

// Transform1..4 register a pure function of 1-4 resolved inputs that
// publishes exactly one output.

func Transform1[A, R any](p *Proxy, algorithmName string, fn func(A) (R, error)) *Registrar {
	return p.newNode(KindTransform, algorithmName, &transformAlgo{n: 1, fn: func(ins []any) ([]any, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return nil, err
		}
		r, err := fn(a)
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}})
}

func Transform2[A, B, R any](p *Proxy, algorithmName string, fn func(A, B) (R, error)) *Registrar {
	return p.newNode(KindTransform, algorithmName, &transformAlgo{n: 2, fn: func(ins []any) ([]any, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return nil, err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return nil, err
		}
		r, err := fn(a, b)
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}})
}

func Transform3[A, B, C, R any](p *Proxy, algorithmName string, fn func(A, B, C) (R, error)) *Registrar {
	return p.newNode(KindTransform, algorithmName, &transformAlgo{n: 3, fn: func(ins []any) ([]any, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return nil, err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return nil, err
		}
		c, err := SafeTypeAssertion[C](ins[2])
		if err != nil {
			return nil, err
		}
		r, err := fn(a, b, c)
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}})
}

func Transform4[A, B, C, D, R any](p *Proxy, algorithmName string, fn func(A, B, C, D) (R, error)) *Registrar {
	return p.newNode(KindTransform, algorithmName, &transformAlgo{n: 4, fn: func(ins []any) ([]any, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return nil, err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return nil, err
		}
		c, err := SafeTypeAssertion[C](ins[2])
		if err != nil {
			return nil, err
		}
		d, err := SafeTypeAssertion[D](ins[3])
		if err != nil {
			return nil, err
		}
		r, err := fn(a, b, c, d)
		if err != nil {
			return nil, err
		}
		return []any{r}, nil
	}})
}

// Predicate1..3 register a boolean-producing function of 1-3 inputs.
// The single published output is always the gating boolean.

func Predicate1[A any](p *Proxy, algorithmName string, fn func(A) (bool, error)) *Registrar {
	return p.newNode(KindPredicate, algorithmName, &predicateAlgo{n: 1, fn: func(ins []any) (bool, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return false, err
		}
		return fn(a)
	}})
}

func Predicate2[A, B any](p *Proxy, algorithmName string, fn func(A, B) (bool, error)) *Registrar {
	return p.newNode(KindPredicate, algorithmName, &predicateAlgo{n: 2, fn: func(ins []any) (bool, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return false, err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return false, err
		}
		return fn(a, b)
	}})
}

func Predicate3[A, B, C any](p *Proxy, algorithmName string, fn func(A, B, C) (bool, error)) *Registrar {
	return p.newNode(KindPredicate, algorithmName, &predicateAlgo{n: 3, fn: func(ins []any) (bool, error) {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return false, err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return false, err
		}
		c, err := SafeTypeAssertion[C](ins[2])
		if err != nil {
			return false, err
		}
		return fn(a, b, c)
	}})
}

// Observer1..3 register a side-effecting function that never publishes.

func Observer1[A any](p *Proxy, algorithmName string, fn func(A) error) *Registrar {
	return p.newNode(KindObserver, algorithmName, &observerAlgo{n: 1, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		return fn(a)
	}})
}

func Observer2[A, B any](p *Proxy, algorithmName string, fn func(A, B) error) *Registrar {
	return p.newNode(KindObserver, algorithmName, &observerAlgo{n: 2, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return err
		}
		return fn(a, b)
	}})
}

func Observer3[A, B, C any](p *Proxy, algorithmName string, fn func(A, B, C) error) *Registrar {
	return p.newNode(KindObserver, algorithmName, &observerAlgo{n: 3, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return err
		}
		c, err := SafeTypeAssertion[C](ins[2])
		if err != nil {
			return err
		}
		return fn(a, b, c)
	}})
}

// Output1..3 register a persistence-side-effect function, gated by
// When(...) rather than feeding a downstream predicate.

func Output1[A any](p *Proxy, algorithmName string, fn func(A) error) *Registrar {
	return p.newNode(KindOutput, algorithmName, &outputAlgo{n: 1, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		return fn(a)
	}})
}

func Output2[A, B any](p *Proxy, algorithmName string, fn func(A, B) error) *Registrar {
	return p.newNode(KindOutput, algorithmName, &outputAlgo{n: 2, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return err
		}
		return fn(a, b)
	}})
}

func Output3[A, B, C any](p *Proxy, algorithmName string, fn func(A, B, C) error) *Registrar {
	return p.newNode(KindOutput, algorithmName, &outputAlgo{n: 3, fn: func(ins []any) error {
		a, err := SafeTypeAssertion[A](ins[0])
		if err != nil {
			return err
		}
		b, err := SafeTypeAssertion[B](ins[1])
		if err != nil {
			return err
		}
		c, err := SafeTypeAssertion[C](ins[2])
		if err != nil {
			return err
		}
		return fn(a, b, c)
	}})
}

// Fold1 registers a single-input fold whose terminal per-partition state
// is published directly as the node's one output once the partition's
// flush store arrives. Use FoldWithFinalizer1 when
// the published output should be computed from, rather than be, the
// state.
func Fold1[A, S any](p *Proxy, algorithmName string, initial func() S, combine func(S, A) (S, error)) *Registrar {
	return FoldWithFinalizer1[A, S, S](p, algorithmName, initial, combine, func(s S) (S, error) { return s, nil })
}

// FoldWithFinalizer1 registers a single-input fold with an explicit
// state -> outputs finalizer.
func FoldWithFinalizer1[A, S, R any](p *Proxy, algorithmName string, initial func() S, combine func(S, A) (S, error), finalize func(S) (R, error)) *Registrar {
	return p.newNode(KindFold, algorithmName, &foldAlgo{
		n: 1,
		combine: func(state any, ins []any) (any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			return combine(s, a)
		},
		finalize: func(state any) ([]any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			out, err := finalize(s)
			if err != nil {
				return nil, err
			}
			return []any{out}, nil
		},
		initial: func() any { return initial() },
	})
}

// Fold2 registers a two-input fold publishing its terminal state
// directly, like Fold1.
func Fold2[A, B, S any](p *Proxy, algorithmName string, initial func() S, combine func(S, A, B) (S, error)) *Registrar {
	return FoldWithFinalizer2[A, B, S, S](p, algorithmName, initial, combine, func(s S) (S, error) { return s, nil })
}

// FoldWithFinalizer2 registers a two-input fold with an explicit
// state -> outputs finalizer.
func FoldWithFinalizer2[A, B, S, R any](p *Proxy, algorithmName string, initial func() S, combine func(S, A, B) (S, error), finalize func(S) (R, error)) *Registrar {
	return p.newNode(KindFold, algorithmName, &foldAlgo{
		n: 2,
		combine: func(state any, ins []any) (any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return nil, err
			}
			return combine(s, a, b)
		},
		finalize: func(state any) ([]any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			out, err := finalize(s)
			if err != nil {
				return nil, err
			}
			return []any{out}, nil
		},
		initial: func() any { return initial() },
	})
}

// Fold3 registers a three-input fold publishing its terminal state
// directly, like Fold1.
func Fold3[A, B, C, S any](p *Proxy, algorithmName string, initial func() S, combine func(S, A, B, C) (S, error)) *Registrar {
	return FoldWithFinalizer3[A, B, C, S, S](p, algorithmName, initial, combine, func(s S) (S, error) { return s, nil })
}

// FoldWithFinalizer3 registers a three-input fold with an explicit
// state -> outputs finalizer.
func FoldWithFinalizer3[A, B, C, S, R any](p *Proxy, algorithmName string, initial func() S, combine func(S, A, B, C) (S, error), finalize func(S) (R, error)) *Registrar {
	return p.newNode(KindFold, algorithmName, &foldAlgo{
		n: 3,
		combine: func(state any, ins []any) (any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return nil, err
			}
			c, err := SafeTypeAssertion[C](ins[2])
			if err != nil {
				return nil, err
			}
			return combine(s, a, b, c)
		},
		finalize: func(state any) ([]any, error) {
			s, err := SafeTypeAssertion[S](state)
			if err != nil {
				return nil, err
			}
			out, err := finalize(s)
			if err != nil {
				return nil, err
			}
			return []any{out}, nil
		},
		initial: func() any { return initial() },
	})
}

// Unfold1 registers a single-input unfold: selects decides whether the
// parent store is split at all, generate lazily produces its children.
func Unfold1[A any](p *Proxy, algorithmName string, selects func(A) (bool, error), generate func(A) (Generator, error)) *Registrar {
	return p.newNode(KindUnfold, algorithmName, &unfoldAlgo{
		n: 1,
		selects: func(ins []any) (bool, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return false, err
			}
			return selects(a)
		},
		generate: func(ins []any) (Generator, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			return generate(a)
		},
	})
}

// Unfold2 registers a two-input unfold.
func Unfold2[A, B any](p *Proxy, algorithmName string, selects func(A, B) (bool, error), generate func(A, B) (Generator, error)) *Registrar {
	return p.newNode(KindUnfold, algorithmName, &unfoldAlgo{
		n: 2,
		selects: func(ins []any) (bool, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return false, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return false, err
			}
			return selects(a, b)
		},
		generate: func(ins []any) (Generator, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return nil, err
			}
			return generate(a, b)
		},
	})
}

// Unfold3 registers a three-input unfold.
func Unfold3[A, B, C any](p *Proxy, algorithmName string, selects func(A, B, C) (bool, error), generate func(A, B, C) (Generator, error)) *Registrar {
	return p.newNode(KindUnfold, algorithmName, &unfoldAlgo{
		n: 3,
		selects: func(ins []any) (bool, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return false, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return false, err
			}
			c, err := SafeTypeAssertion[C](ins[2])
			if err != nil {
				return false, err
			}
			return selects(a, b, c)
		},
		generate: func(ins []any) (Generator, error) {
			a, err := SafeTypeAssertion[A](ins[0])
			if err != nil {
				return nil, err
			}
			b, err := SafeTypeAssertion[B](ins[1])
			if err != nil {
				return nil, err
			}
			c, err := SafeTypeAssertion[C](ins[2])
			if err != nil {
				return nil, err
			}
			return generate(a, b, c)
		},
	})
}
