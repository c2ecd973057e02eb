// Package orchestratortest 提供基于 gin 的内存版 Orchestrator，用于客户端与端到端测试。
package orchestratortest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"robotrenamer/internal/orchestrator"

	"github.com/gin-gonic/gin"
)

// Token 为假服务器签发的固定 token。
const Token = "fake-token"

// Robot 为假服务器内保存的机器人及其所属组织单元。
type Robot struct {
	UnitID int64
	Robot  orchestrator.Robot
}

// Server 为内存版 Orchestrator。
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	tenant        string
	user          string
	password      string
	ignoreUpdates bool
	failNext      int

	units  []orchestrator.OrganizationUnit
	robots []Robot
	calls  map[string]int
	puts   []json.RawMessage
}

// NewServer 启动假服务器，测试结束时需调用 Close。
func NewServer(units []orchestrator.OrganizationUnit, robots []Robot) *Server {
	gin.SetMode(gin.TestMode)
	s := &Server{
		units:  units,
		robots: robots,
		calls:  make(map[string]int),
	}
	engine := gin.New()
	engine.POST(orchestrator.AuthenticatePath, s.handleAuthenticate)
	odata := engine.Group("/odata", s.requireToken, s.injectFailures)
	odata.GET("/:entity", s.handleGet)
	odata.PUT("/:entity", s.handlePut)
	s.Server = httptest.NewServer(engine)
	return s
}

// SetCredentials 设置登录接口校验的租户与账号，空值不校验。
func (s *Server) SetCredentials(tenant, user, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tenant, s.user, s.password = tenant, user, password
}

// SetIgnoreUpdates 为 true 时 PUT 返回成功但不落库，用来模拟静默拒绝。
func (s *Server) SetIgnoreUpdates(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreUpdates = v
}

// SetFailNext 让接下来 n 次 OData 请求返回 503。
func (s *Server) SetFailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

// Calls 返回某类调用的次数，key 形如 "GET OrganizationUnits"、"PUT Robots"。
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

// Puts 返回所有 PUT 请求体。
func (s *Server) Puts() []json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]json.RawMessage(nil), s.puts...)
}

// Robot 返回当前保存的机器人。
func (s *Server) Robot(id int64) (orchestrator.Robot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.robots {
		if r.Robot.ID == id {
			return r.Robot, true
		}
	}
	return orchestrator.Robot{}, false
}

func (s *Server) handleAuthenticate(c *gin.Context) {
	var req struct {
		TenancyName string `json:"tenancyName"`
		User        string `json:"usernameOrEmailAddress"`
		Password    string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false})
		return
	}
	s.mu.Lock()
	s.calls["POST Authenticate"]++
	ok := (s.tenant == "" || s.tenant == req.TenancyName) &&
		(s.user == "" || s.user == req.User) &&
		(s.password == "" || s.password == req.Password)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": gin.H{"message": "Invalid credentials"}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": Token, "success": true})
}

func (s *Server) requireToken(c *gin.Context) {
	if c.GetHeader("Authorization") != "Bearer "+Token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "You are not authenticated!"})
		return
	}
	c.Next()
}

func (s *Server) injectFailures(c *gin.Context) {
	s.mu.Lock()
	fail := s.failNext > 0
	if fail {
		s.failNext--
	}
	s.mu.Unlock()
	if fail {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"message": "try again"})
		return
	}
	c.Next()
}

var entityWithKey = regexp.MustCompile(`^(\w+)\((\d+)\)$`)

func parseEntity(raw string) (string, int64, bool) {
	if m := entityWithKey.FindStringSubmatch(raw); m != nil {
		id, err := strconv.ParseInt(m[2], 10, 64)
		return m[1], id, err == nil
	}
	return raw, 0, false
}

func (s *Server) handleGet(c *gin.Context) {
	entity, id, keyed := parseEntity(c.Param("entity"))
	unitID, _ := strconv.ParseInt(c.Query("OrganizationUnitId"), 10, 64)
	filter := parseFilter(c.Query("$filter"))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["GET "+entity]++

	switch {
	case entity == "OrganizationUnits" && !keyed:
		value := make([]orchestrator.OrganizationUnit, 0)
		for _, u := range s.units {
			if filter.matchUnit(u.DisplayName) {
				value = append(value, u)
			}
		}
		c.JSON(http.StatusOK, gin.H{"@odata.count": len(value), "value": value})
	case entity == "Robots" && !keyed:
		value := make([]orchestrator.Robot, 0)
		for _, r := range s.robots {
			if unitID != 0 && r.UnitID != unitID {
				continue
			}
			if filter.matchRobot(r.Robot) {
				value = append(value, r.Robot)
			}
		}
		c.JSON(http.StatusOK, gin.H{"@odata.count": len(value), "value": value})
	case entity == "Robots":
		for _, r := range s.robots {
			if r.Robot.ID == id && (unitID == 0 || r.UnitID == unitID) {
				c.JSON(http.StatusOK, r.Robot)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"message": "Robot does not exist."})
	default:
		c.JSON(http.StatusNotFound, gin.H{"message": "unknown entity"})
	}
}

func (s *Server) handlePut(c *gin.Context) {
	entity, id, keyed := parseEntity(c.Param("entity"))
	if entity != "Robots" || !keyed {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"message": "not allowed"})
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	var robot orchestrator.Robot
	if err := json.Unmarshal(body, &robot); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["PUT Robots"]++
	s.puts = append(s.puts, body)
	for i := range s.robots {
		if s.robots[i].Robot.ID != id {
			continue
		}
		if !s.ignoreUpdates {
			s.robots[i].Robot = robot
		}
		c.JSON(http.StatusOK, robot)
		return
	}
	c.JSON(http.StatusNotFound, gin.H{"message": "Robot does not exist."})
}

var (
	eqClause       = regexp.MustCompile(`(\w+) eq '((?:[^']|'')*)'`)
	containsClause = regexp.MustCompile(`contains\((\w+),'((?:[^']|'')*)'\)`)
)

type filter struct {
	eq       map[string]string
	contains map[string]string
}

func parseFilter(raw string) filter {
	f := filter{eq: map[string]string{}, contains: map[string]string{}}
	for _, m := range eqClause.FindAllStringSubmatch(raw, -1) {
		f.eq[m[1]] = strings.ReplaceAll(m[2], "''", "'")
	}
	for _, m := range containsClause.FindAllStringSubmatch(raw, -1) {
		f.contains[m[1]] = strings.ReplaceAll(m[2], "''", "'")
	}
	return f
}

func (f filter) matchUnit(name string) bool {
	if v, ok := f.eq["DisplayName"]; ok && v != name {
		return false
	}
	if v, ok := f.contains["DisplayName"]; ok && !strings.Contains(name, v) {
		return false
	}
	return true
}

func (f filter) matchRobot(r orchestrator.Robot) bool {
	fields := map[string]string{
		"Username":    r.Username,
		"MachineName": r.MachineName,
		"Name":        r.Name,
	}
	for k, v := range f.eq {
		if fields[k] != v {
			return false
		}
	}
	return true
}
