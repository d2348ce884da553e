// Package hypersonic is a route-specialized HTTP/1.1 (optionally TLS/h2c)
// server. Route registration, middleware, and feature flags are analyzed
// once at Compile() into a Specialization — a dispatch plan with
// precomputed static responses, a frozen route table, and a trampoline for
// everything else — which then answers every request for the server's
// lifetime with no further route analysis.
//
// A minimal server:
//
//	srv := hypersonic.MustNew()
//	srv.GET("/health", func(req *trampoline.Request) (any, error) {
//	    return "OK", nil
//	})
//	if err := srv.Compile(); err != nil {
//	    log.Fatal(err)
//	}
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer cancel()
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package hypersonic
