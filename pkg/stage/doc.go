/*
Package stage shapes the arguments of one stage phase, invokes the stage implementation and
persists the declared outputs.

A stage with a "split using" clause runs in three phases:

	split  args(inputs)                                  -> chunks
	main   args(inputs + splits), outs                   -> outs, once per chunk
	join   args(inputs), outs, chunk_defs, chunk_outs    -> outs

A stage without splits only has a main phase. Join bindings are keyed with the "in.",
"split." and "out." prefixes, the split and out values holding one entry per chunk.
*/
package stage
