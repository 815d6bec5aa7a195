// Package grpcbilling plugs API key checks and usage reporting into a gRPC
// server.
//
//	client, _ := billing.Initialize(cfg)
//
//	srv := grpc.NewServer(
//	    grpc.ChainUnaryInterceptor(
//	        grpcbilling.UnaryServerInterceptor(client),
//	        grpcbilling.UsageInterceptor(client, grpcbilling.Methods(map[string]grpcbilling.Usage{
//	            "/tts.Synth/Speak": {Module: "tts", Model: "voice-1", Quantity: countChars},
//	        })),
//	    ),
//	    grpc.ChainStreamInterceptor(grpcbilling.StreamServerInterceptor(client)),
//	)
//
// The authorised key travels only in the call context; handlers read it with
// APIKeyFromContext. Usage is reported after the handler returns, also when
// it fails, and a failed report is never swallowed.
package grpcbilling
