// Package urls holds the documentation links printed by dao-cfg.
//
//	fmt.Printf("See %s\n", urls.Documentation)
package urls
