package server

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"sheetcalc/internal/calc"
	"sheetcalc/internal/grid"
	"sheetcalc/internal/storage"
)

type evaluateRequest struct {
	Formula *string        `json:"formula"`
	Data    map[string]any `json:"data"`
	CellRef string         `json:"cellRef"`
}

// evaluateResponse carries either a result or an error. Formula failures
// are reported here with status 200; only malformed requests get 4xx.
type evaluateResponse struct {
	Ref     string         `json:"ref,omitempty"`
	Result  *calc.Value    `json:"result"`
	Success bool           `json:"success"`
	Error   string         `json:"error,omitempty"`
	Kind    calc.ErrorKind `json:"kind,omitempty"`
}

func newEvaluateResponse(res calc.Result) evaluateResponse {
	if !res.OK() {
		return evaluateResponse{Error: res.Err.Message, Kind: res.Err.Kind}
	}
	v := res.Value
	return evaluateResponse{Result: &v, Success: true}
}

type dependenciesRequest struct {
	Formula *string `json:"formula"`
	Expand  bool    `json:"expand"`
}

type exportRequest struct {
	Sheets map[string]map[string]any `json:"sheets"`
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type putCellsRequest struct {
	Cells   map[string]any `json:"cells"`
	Replace bool           `json:"replace"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) handleEvaluate(c *gin.Context) {
	var req evaluateRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Formula == nil {
		c.JSON(http.StatusBadRequest, errorBody("formula is required"))
		return
	}
	cells, err := calc.NewCells(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	c.JSON(http.StatusOK, newEvaluateResponse(s.engine.EvaluateAt(*req.Formula, req.CellRef, cells)))
}

func (s *Server) handleDependencies(c *gin.Context) {
	var req dependenciesRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Formula == nil {
		c.JSON(http.StatusBadRequest, errorBody("formula is required"))
		return
	}
	var (
		refs []string
		err  error
	)
	if req.Expand {
		refs, err = calc.Precedents(*req.Formula, s.engine.Limits().MaxVisits)
	} else {
		refs, err = calc.Dependencies(*req.Formula)
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "error": err.Error(), "kind": calc.KindOf(err)})
		return
	}
	if refs == nil {
		refs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "dependencies": refs})
}

func (s *Server) handleImport(c *gin.Context) {
	f, ok := s.upload(c)
	if !ok {
		return
	}
	defer f.Close()

	sheets, err := storage.ReadWorkbook(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	out := make(map[string]map[string]any, len(sheets))
	for name, cells := range sheets {
		out[name] = cells.Native()
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sheets": out})
}

func (s *Server) handleExport(c *gin.Context) {
	var req exportRequest
	if !s.bind(c, &req) {
		return
	}
	if len(req.Sheets) == 0 {
		c.JSON(http.StatusBadRequest, errorBody("sheets is required"))
		return
	}
	sheets := make(map[string]calc.Cells, len(req.Sheets))
	for name, data := range req.Sheets {
		cells, err := calc.NewCells(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("sheet %q: %v", name, err)))
			return
		}
		sheets[name] = cells
	}
	var buf bytes.Buffer
	if err := storage.WriteWorkbook(&buf, sheets, s.engine); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	attachment(c, "export.xlsx", buf.Bytes())
}

func (s *Server) handleListWorkbooks(c *gin.Context) {
	names, err := s.store.List(c.Request.Context())
	if err != nil {
		s.storeError(c, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"workbooks": names})
}

func (s *Server) handlePutCells(c *gin.Context) {
	var req putCellsRequest
	if !s.bind(c, &req) {
		return
	}
	cells, err := calc.NewCells(req.Cells)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	name := c.Param("name")
	if err := s.store.PutCells(c.Request.Context(), name, cells, req.Replace); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "workbook": name, "cells": len(cells)})
}

func (s *Server) handleGetCells(c *gin.Context) {
	cells, err := s.store.Cells(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"workbook": c.Param("name"), "cells": cells.Native()})
}

func (s *Server) handleGetCell(c *gin.Context) {
	cells, err := s.store.Cells(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	ref, err := grid.ParseCellRef(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	resp := newEvaluateResponse(s.engine.EvaluateCell(ref.String(), cells))
	resp.Ref = ref.String()
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteCell(c *gin.Context) {
	ref, err := grid.ParseCellRef(c.Param("ref"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if err := s.store.DeleteCells(c.Request.Context(), c.Param("name"), ref.String()); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "ref": ref.String()})
}

// handleImportWorkbook replaces a workbook with one worksheet of an
// uploaded xlsx file. The optional form field "sheet" picks the worksheet.
func (s *Server) handleImportWorkbook(c *gin.Context) {
	f, ok := s.upload(c)
	if !ok {
		return
	}
	defer f.Close()

	cells, err := storage.ReadXLSX(f, c.PostForm("sheet"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	name := c.Param("name")
	if err := s.store.PutCells(c.Request.Context(), name, cells, true); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "workbook": name, "cells": len(cells)})
}

func (s *Server) handleExportWorkbook(c *gin.Context) {
	name := c.Param("name")
	cells, err := s.store.Cells(c.Request.Context(), name)
	if err != nil {
		s.storeError(c, err)
		return
	}
	var buf bytes.Buffer
	if err := storage.WriteXLSX(&buf, cells, "", s.engine); err != nil {
		s.storeError(c, err)
		return
	}
	attachment(c, name+".xlsx", buf.Bytes())
}

func (s *Server) handleEvaluateWorkbook(c *gin.Context) {
	var req evaluateRequest
	if !s.bind(c, &req) {
		return
	}
	if req.Formula == nil {
		c.JSON(http.StatusBadRequest, errorBody("formula is required"))
		return
	}
	cells, err := s.store.Cells(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newEvaluateResponse(s.engine.EvaluateAt(*req.Formula, req.CellRef, cells)))
}

func (s *Server) handleDeleteWorkbook(c *gin.Context) {
	if err := s.store.Delete(c.Request.Context(), c.Param("name")); err != nil {
		s.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// upload opens the multipart field "file" and answers the request itself
// when that fails.
func (s *Server) upload(c *gin.Context) (multipart.File, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		s.requestError(c, err, "multipart field \"file\" is required")
		return nil, false
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return nil, false
	}
	return f, true
}

func attachment(c *gin.Context, filename string, data []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// bind decodes the JSON body into dst and answers the request itself when
// that fails.
func (s *Server) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.requestError(c, err, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) requestError(c *gin.Context, err error, msg string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody("request body too large"))
		return
	}
	c.JSON(http.StatusBadRequest, errorBody(msg))
}

func (s *Server) storeError(c *gin.Context, err error) {
	var refErr *grid.RefError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, errorBody(err.Error()))
	case errors.Is(err, storage.ErrInvalidName), errors.As(err, &refErr):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	default:
		s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("store failure")
		c.JSON(http.StatusInternalServerError, errorBody("internal error"))
	}
}
