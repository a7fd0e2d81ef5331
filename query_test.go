package sfquery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/nicheinc/expect"
	"golang.org/x/text/encoding/charmap"
)

// recordingServer serves canned responses per path and records every
// request path in order.
type recordingServer struct {
	mu        sync.Mutex
	paths     []string
	responses map[string]string
	server    *httptest.Server
}

func newRecordingServer(responses map[string]string) *recordingServer {
	rs := &recordingServer{responses: responses}
	rs.server = httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rs.mu.Lock()
		rs.paths = append(rs.paths, req.URL.Path)
		rs.mu.Unlock()
		body, ok := rs.responses[req.URL.Path]
		if !ok {
			rw.WriteHeader(http.StatusNotFound)
			rw.Write([]byte(`[{"errorCode":"NOT_FOUND","message":"The requested resource does not exist"}]`))
			return
		}
		rw.Header().Set("Content-Type", "application/xml")
		rw.Write([]byte(body))
	}))
	return rs
}

func (rs *recordingServer) requestPaths() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.paths...)
}

func newTestClient(serverURL string, opts ...Option) *restClient {
	return newRestClient(Session{
		AccessToken: "aSalesforceAccessToken",
		InstanceURL: serverURL,
	}, opts...)
}

func TestClient_Query_SinglePage(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `<?xml version="1.0" encoding="UTF-8"?>
			<QueryResult>
				<totalSize>2</totalSize>
				<done>true</done>
				<records><Id>001A</Id><Name>Acme</Name></records>
				<records><Id>001B</Id><Name>Globex</Name></records>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	records, err := c.Query(context.Background(), "SELECT Id, Name FROM Account")
	expect.ErrorNil(t, err)
	expect.Equal(t, records, []Record{
		{"Id": "001A", "Name": "Acme"},
		{"Id": "001B", "Name": "Globex"},
	})
	expect.Equal(t, len(rs.requestPaths()), 1)
}

func TestClient_Query_MultiPage(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<totalSize>5</totalSize>
				<done>false</done>
				<records><Name>p1r1</Name></records>
				<records><Name>p1r2</Name></records>
				<nextRecordsUrl>/page2</nextRecordsUrl>
			</QueryResult>`,
		"/page2": `
			<QueryResult>
				<totalSize>5</totalSize>
				<done>true</done>
				<records><Name>p2r1</Name></records>
				<records><Name>p2r2</Name></records>
				<records><Name>p2r3</Name></records>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	records, err := c.Query(context.Background(), "SELECT Name FROM Account")
	expect.ErrorNil(t, err)
	expect.Equal(t, records, []Record{
		{"Name": "p1r1"},
		{"Name": "p1r2"},
		{"Name": "p2r1"},
		{"Name": "p2r2"},
		{"Name": "p2r3"},
	})
	expect.Equal(t, rs.requestPaths(), []string{"/services/data/v35.0/query", "/page2"})
}

func TestClient_Query_ContinuationNormalization(t *testing.T) {
	continuation := "/services/data/v35.0/query/01gXX0000000001-2000"
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<records><Name>first</Name></records>
				<nextRecordsUrl>` + continuation + `</nextRecordsUrl>
			</QueryResult>`,
		continuation: `
			<QueryResult>
				<records><Name>second</Name></records>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	records, err := c.Query(context.Background(), "SELECT Name FROM Account")
	expect.ErrorNil(t, err)
	expect.Equal(t, len(records), 2)
	// The continuation's leading slash must not be doubled when joined onto
	// the instance URL.
	expect.Equal(t, rs.requestPaths(), []string{"/services/data/v35.0/query", continuation})
}

func TestClient_Query_EmptyResultSet(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<totalSize>0</totalSize>
				<done>true</done>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	records, err := c.Query(context.Background(), "SELECT Id FROM Account WHERE Name = 'nope'")
	expect.ErrorNil(t, err)
	expect.Equal(t, len(records), 0)
	expect.Equal(t, len(rs.requestPaths()), 1)
}

func TestClient_Query_ServiceError(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<Error>
					<errorCode>INVALID_SESSION_ID</errorCode>
					<message>Session expired</message>
				</Error>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	_, err := c.Query(context.Background(), "SELECT Id FROM Account")

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Query() error = %v, want *QueryError", err)
	}
	expect.Equal(t, *queryErr, QueryError{ErrCode: "INVALID_SESSION_ID", Message: "Session expired"})
	expect.Equal(t, len(rs.requestPaths()), 1)
}

func TestClient_Query_ErrorPrecedesContinuation(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<records><Name>doomed</Name></records>
				<nextRecordsUrl>/page2</nextRecordsUrl>
				<Error>
					<errorCode>QUERY_TIMEOUT</errorCode>
					<message>Your query request was running for too long.</message>
				</Error>
			</QueryResult>`,
		"/page2": `<QueryResult><records><Name>unreached</Name></records></QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	_, err := c.Query(context.Background(), "SELECT Name FROM Account")

	var queryErr *QueryError
	if !errors.As(err, &queryErr) {
		t.Fatalf("Query() error = %v, want *QueryError", err)
	}
	expect.Equal(t, queryErr.ErrCode, "QUERY_TIMEOUT")
	// The next page must never be fetched once an error node is seen.
	expect.Equal(t, rs.requestPaths(), []string{"/services/data/v35.0/query"})
}

func TestClient_Query_PartialErrorNodeIgnored(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<records><Name>kept</Name></records>
				<Error>
					<errorCode>LONELY_CODE</errorCode>
				</Error>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	records, err := c.Query(context.Background(), "SELECT Name FROM Account")
	expect.ErrorNil(t, err)
	expect.Equal(t, records, []Record{{"Name": "kept"}})
}

func TestClient_Query_MalformedResponse(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `this is not XML`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	if _, err := c.Query(context.Background(), "SELECT Id FROM Account"); err == nil {
		t.Errorf("Query() error = nil, want decode error")
	}
}

func TestClient_Query_APIErrorPropagates(t *testing.T) {
	rs := newRecordingServer(map[string]string{})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL)
	_, err := c.Query(context.Background(), "SELECT Id FROM Account")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Query() error = %v, want *APIError", err)
	}
	expect.Equal(t, *apiErr, APIError{
		{ErrCode: "NOT_FOUND", Message: "The requested resource does not exist"},
	})
}

func TestClient_Query_RecordEncoding(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `
			<QueryResult>
				<records><Name>café</Name><Note>snowman ☃</Note></records>
			</QueryResult>`,
	})
	defer rs.server.Close()

	c := newTestClient(rs.server.URL, WithRecordEncoding(charmap.ISO8859_1))
	records, err := c.Query(context.Background(), "SELECT Name, Note FROM Account")
	expect.ErrorNil(t, err)
	expect.Equal(t, records, []Record{{
		// convertible fields come back in the target charset
		"Name": "caf\xe9",
		// fields the target charset cannot represent keep their UTF-8 value
		"Note": "snowman ☃",
	}})
}

func TestClient_Query_ContextCancelled(t *testing.T) {
	rs := newRecordingServer(map[string]string{
		"/services/data/v35.0/query": `<QueryResult><records><Name>r</Name></records></QueryResult>`,
	})
	defer rs.server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(rs.server.URL)
	if _, err := c.Query(ctx, "SELECT Name FROM Account"); !errors.Is(err, context.Canceled) {
		t.Errorf("Query() error = %v, want context.Canceled", err)
	}
}
