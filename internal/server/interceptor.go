package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/emrgen/revision/internal/metrics"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
)

func UnaryGrpcRequestTimeInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		reqTime := time.Since(start)
		logrus.Infof("request time: %v: %v", info.FullMethod, reqTime)
		return resp, err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// requestTime logs and records the duration and status of a REST request.
// route is the path pattern, not the concrete path, to keep the metric
// cardinality bounded.
func requestTime(m *metrics.Metrics, method, route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		reqTime := time.Since(start)

		logrus.Infof("request time: %s %s: %v (%d)", method, route, reqTime, rec.status)
		m.ObserveRequest(method+" "+route, strconv.Itoa(rec.status), reqTime.Seconds())
	}
}
