// Package discovery finds Day Ahead Optimizer webservers on the local
// network.
//
// The DAO add-on does not announce itself over mDNS, but Home Assistant
// does (_home-assistant._tcp). Scanner browses for Home Assistant hosts and
// assumes the DAO webserver on the same address at port 5000; Probe then
// checks each candidate by requesting /api/schema.
//
//	scanner := discovery.NewScanner()
//	servers, err := scanner.Scan(ctx)
//	scanner.Probe(ctx, servers)
//	for _, s := range servers {
//	    if s.Reachable {
//	        fmt.Println(s.BaseURL())
//	    }
//	}
package discovery
